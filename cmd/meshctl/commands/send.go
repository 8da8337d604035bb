package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/burgrp-go/meshbridge/pkg/rpcnet"
)

func GetSendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <rpc-addr> <params>",
		Short: "Send a Local RPC call to a running node and print the result",
		Args:  cobra.ExactArgs(2),
		RunE:  runSend,
	}

	cmd.Flags().Duration("timeout", 5*time.Second, "Round-trip timeout")

	return cmd
}

func runSend(cmd *cobra.Command, args []string) error {
	env, err := GetEnvironment()
	if err != nil {
		return err
	}

	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}

	c, err := rpcnet.Dial(args[0])
	if err != nil {
		return fmt.Errorf("dialing %s: %w", args[0], err)
	}
	defer c.Close()

	ok, result, err := c.Local(env.GroupID, []byte(args[1]), timeout)
	if err != nil {
		return err
	}

	fmt.Printf("ok=%v result=%q\n", ok, string(result))
	return nil
}
