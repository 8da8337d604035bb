package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/burgrp-go/meshbridge/pkg/rpcnet"
)

func GetRegisterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register <rpc-addr> [permission]",
		Short: "Probe whether a running node has a handler registered for MESHCTL_GROUP",
		Long: `There is no dedicated "list registrations" RPC message, so register
probes with a level_permission call instead: per the protocol, an
unregistered group always answers OK=false.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runRegister,
	}

	cmd.Flags().Duration("timeout", 5*time.Second, "Round-trip timeout")

	return cmd
}

func runRegister(cmd *cobra.Command, args []string) error {
	env, err := GetEnvironment()
	if err != nil {
		return err
	}

	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}

	var permission []byte
	if len(args) > 1 {
		permission = []byte(args[1])
	}

	c, err := rpcnet.Dial(args[0])
	if err != nil {
		return fmt.Errorf("dialing %s: %w", args[0], err)
	}
	defer c.Close()

	ok, err := c.LevelPermission(env.GroupID, permission, timeout)
	if err != nil {
		return err
	}

	if ok {
		fmt.Printf("group %s is registered\n", env.GroupName)
	} else {
		fmt.Printf("group %s is not registered\n", env.GroupName)
	}
	return nil
}
