// Package server interprets the in-band slash commands layered over plain
// chat lines.
package server

import (
	"errors"
	"log/slog"
	"strings"
)

// replyColor tags every command reply; replies never carry the session's
// own color.
const replyColor = "#000000"

const usageText = "Available commands: help, list, rename <new_name>, set_color <color>"

// dispatchCommand interprets one line with its leading slash stripped.
// The grammar is a closed set with no quoting or nesting; arguments split
// on whitespace. Every reply goes to the issuing session only, so command
// handling never reaches the broadcast path.
func (s *Session) dispatchCommand(input string) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		s.reply(usageText)
		return
	}

	name, args := fields[0], fields[1:]
	switch name {
	case "help":
		s.reply(usageText)
	case "list":
		s.reply("Users: " + strings.Join(s.registry.Names(), ", "))
	case "rename":
		s.rename(args)
	case "set_color":
		s.setColor(args)
	default:
		s.reply("Unknown command: " + name + ", type /help to list available commands")
	}
}

// rename moves the session's registry key to the requested name. The
// session's own name field is updated only after the registry accepted
// the swap, so a rejected rename leaves both untouched.
func (s *Session) rename(args []string) {
	if len(args) == 0 {
		s.reply("Usage: /rename <new_name>")
		return
	}

	newName := args[0]
	if err := s.registry.Rename(s.name, newName); err != nil {
		if errors.Is(err, ErrNameTaken) {
			s.reply("Name " + newName + " is already taken")
		} else {
			s.reply("Rename failed, try again")
		}
		return
	}

	s.log.Info("session renamed", slog.String("from", s.name), slog.String("to", newName))
	s.name = newName
	s.reply("Renamed to " + s.name)
}

// setColor stores the color token verbatim; clients interpret it.
func (s *Session) setColor(args []string) {
	if len(args) == 0 {
		s.reply("Usage: /set_color <color>")
		return
	}

	s.color = args[0]
	s.reply("Color set to " + s.color)
}
