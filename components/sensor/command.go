package sensor

import (
	"context"
	"fmt"
	"sort"
)

// Command names understood by DoCommand.
const (
	TareCommandName      = "tare"
	ResetTareCommandName = "reset_tare"
)

// AvailableCommands lists the supported command names in the order they are reported.
var AvailableCommands = []string{TareCommandName, ResetTareCommandName}

// A Command is one parsed DoCommand key: TareCommand, ResetTareCommand or UnknownCommand.
type Command interface {
	// Name returns the key the command was parsed from.
	Name() string
	execute(ctx context.Context, t Tarer) (interface{}, error)
}

type (
	// TareCommand stores a fresh sample as the baseline. Its result is the offsets map.
	TareCommand struct{}
	// ResetTareCommand zeroes the baseline. Its result is true.
	ResetTareCommand struct{}
	// UnknownCommand is any other key. Its result describes the supported commands.
	UnknownCommand struct {
		Key string
	}
)

// ParseCommand maps a DoCommand key to its Command.
func ParseCommand(name string) Command {
	switch name {
	case TareCommandName:
		return TareCommand{}
	case ResetTareCommandName:
		return ResetTareCommand{}
	default:
		return UnknownCommand{Key: name}
	}
}

// Name returns "tare".
func (TareCommand) Name() string { return TareCommandName }

// Name returns "reset_tare".
func (ResetTareCommand) Name() string { return ResetTareCommandName }

// Name returns the unrecognized key.
func (c UnknownCommand) Name() string { return c.Key }

func (TareCommand) execute(ctx context.Context, t Tarer) (interface{}, error) {
	offsets, err := t.Tare(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[string]interface{}, len(offsets))
	for k, v := range offsets {
		result[k] = v
	}
	return result, nil
}

func (ResetTareCommand) execute(ctx context.Context, t Tarer) (interface{}, error) {
	if err := t.ResetTare(ctx); err != nil {
		return nil, err
	}
	return true, nil
}

func (c UnknownCommand) execute(ctx context.Context, t Tarer) (interface{}, error) {
	available := make([]interface{}, len(AvailableCommands))
	for i, name := range AvailableCommands {
		available[i] = name
	}
	return map[string]interface{}{
		"error":              fmt.Sprintf("Unknown command: %s", c.Key),
		"available_commands": available,
	}, nil
}

// DoTareCommand runs every key of cmd against t in sorted key order and returns one result per
// key. The first hardware error aborts the remaining commands and is returned.
func DoTareCommand(ctx context.Context, t Tarer, cmd map[string]interface{}) (map[string]interface{}, error) {
	keys := make([]string, 0, len(cmd))
	for k := range cmd {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		out, err := ParseCommand(k).execute(ctx, t)
		if err != nil {
			return nil, err
		}
		result[k] = out
	}
	return result, nil
}
