// Package parser turns a line of manager stdin into a store.Command.
package parser

import (
	"fmt"
	"strings"

	"github.com/decub/kvgossip/internal/store"
)

// Parse tokenizes line on whitespace, treats the first token as the command
// name (case-insensitive), and validates the remaining tokens against that
// command's arity before building a store.Command. A malformed line yields
// an error and no Command; the caller must not broadcast on error.
func Parse(line string) (store.Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("parser: empty command")
	}

	name := strings.ToUpper(fields[0])
	args := fields[1:]

	switch name {
	case "DEL":
		if len(args) < 1 {
			return nil, fmt.Errorf("parser: DEL requires at least one key")
		}
		return store.DelCommand{Keys: args}, nil
	case "EXISTS":
		if len(args) < 1 {
			return nil, fmt.Errorf("parser: EXISTS requires at least one key")
		}
		return store.ExistsCommand{Keys: args}, nil
	case "GET":
		if len(args) != 1 {
			return nil, fmt.Errorf("parser: GET requires exactly one key, got %d", len(args))
		}
		return store.GetCommand{Key: args[0]}, nil
	case "KEYS":
		if len(args) != 1 {
			return nil, fmt.Errorf("parser: KEYS requires exactly one pattern, got %d", len(args))
		}
		return store.KeysCommand{Pattern: args[0]}, nil
	case "SET":
		if len(args) != 2 {
			return nil, fmt.Errorf("parser: SET requires exactly a key and a value, got %d args", len(args))
		}
		return store.SetCommand{Key: args[0], Value: args[1]}, nil
	default:
		return nil, fmt.Errorf("parser: unrecognized command %q", fields[0])
	}
}
