package commands

import (
	"fmt"
	"os"

	"github.com/burgrp-go/meshbridge/pkg/keys"
	"github.com/burgrp-go/meshbridge/pkg/types"
)

// Environment holds the values the join, send and register subcommands
// read from the process environment, mirroring the teacher CLI's
// SURP_IF/SURP_GROUP pair.
type Environment struct {
	Interface string
	GroupName string
	GroupID   types.GroupID
	KeyFile   string
}

// GetEnvironment reads MESHCTL_IF and MESHCTL_GROUP, both required, and
// the optional MESHCTL_KEY_FILE. The group name is hashed into the
// 32-byte GroupID every wire frame and bridge message carries.
func GetEnvironment() (*Environment, error) {
	iface := os.Getenv("MESHCTL_IF")
	if iface == "" {
		return nil, fmt.Errorf("MESHCTL_IF environment variable is required")
	}

	groupName := os.Getenv("MESHCTL_GROUP")
	if groupName == "" {
		return nil, fmt.Errorf("MESHCTL_GROUP environment variable is required")
	}

	return &Environment{
		Interface: iface,
		GroupName: groupName,
		GroupID:   keys.Hash([]byte(groupName)),
		KeyFile:   os.Getenv("MESHCTL_KEY_FILE"),
	}, nil
}
