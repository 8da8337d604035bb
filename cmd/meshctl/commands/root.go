package commands

import "github.com/spf13/cobra"

func GetRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meshctl",
		Short: "meshctl binds a node to the overlay and talks to its local RPC surface.",
		Long: `meshctl is a command line tool for running and exercising a meshbridge node.

Two environment variables are required by join, send and register:
- MESHCTL_IF: the network interface the multicast discovery socket joins on
- MESHCTL_GROUP: the group name to join (hashed into the 32-byte GroupID)

MESHCTL_KEY_FILE optionally names a file holding this node's Ed25519 private
key; if it doesn't exist one is generated and saved there, and if unset an
ephemeral key is used for the lifetime of the process.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(
		GetJoinCommand(),
		GetSendCommand(),
		GetRegisterCommand(),
		GetVersionCommand(),
	)

	return cmd
}
