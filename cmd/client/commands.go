package main

import (
	"chat-fanout/domain"
	"chat-fanout/services"
	"fmt"
	"strconv"
	"strings"
)

// Local commands are answered by the client itself.
const (
	localWho     = "who"
	localHistory = "history"
	localSearch  = "search"
	localTarget  = "target"
	localHelp    = "help"
	localQuit    = "quit"
)

const help = `commands:
  <text>                 send to the current target
  /join <room>           join a room and make it the target
  /leave <room>          leave a room
  /dm <userId>           talk privately to a user
  /file <url>            share a file link with the current target
  /typing on|off         typing indicator for the current target
  /react <msgId> <emoji> react to a message
  /read <msgId>          mark a private message as read
  /who                   online users
  /history [limit]       history of the current target
  /search <words>        search the current room
  /quit`

type command struct {
	frame  *services.Frame
	local  string
	target domain.Destination
	arg    string
}

// parse turns a typed line into a frame for the server or a local command.
func parse(line string, target domain.Destination, ref string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, fmt.Errorf("empty line")
	}
	if !strings.HasPrefix(line, "/") {
		return send(ref, services.SendMessagePayload{Body: line}, target)
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch name {
	case "join":
		if len(args) != 1 {
			return command{}, fmt.Errorf("usage: /join <room>")
		}
		room := domain.RoomName(args[0])
		cmd, err := frame(services.JoinRoomEvent, ref, services.RoomPayload{Room: room})
		cmd.target = domain.ToRoom(room)
		return cmd, err
	case "leave":
		if len(args) != 1 {
			return command{}, fmt.Errorf("usage: /leave <room>")
		}
		return frame(services.LeaveRoomEvent, ref, services.RoomPayload{Room: domain.RoomName(args[0])})
	case "dm":
		if len(args) != 1 {
			return command{}, fmt.Errorf("usage: /dm <userId>")
		}
		return command{local: localTarget, target: domain.ToUser(domain.UserID(args[0]))}, nil
	case "file":
		if len(args) != 1 {
			return command{}, fmt.Errorf("usage: /file <url>")
		}
		return send(ref, services.SendMessagePayload{Body: args[0], Kind: domain.KindFile}, target)
	case "typing":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return command{}, fmt.Errorf("usage: /typing on|off")
		}
		return frame(services.SetTypingEvent, "", services.SetTypingPayload{
			Room:        target.Room,
			RecipientID: target.Recipient,
			IsTyping:    args[0] == "on",
		})
	case "react":
		if len(args) != 2 {
			return command{}, fmt.Errorf("usage: /react <msgId> <emoji>")
		}
		return frame(services.AddReactionEvent, ref, services.AddReactionPayload{MessageID: domain.MessageID(args[0]), Emoji: args[1]})
	case "read":
		if len(args) != 1 {
			return command{}, fmt.Errorf("usage: /read <msgId>")
		}
		return frame(services.MarkReadEvent, ref, services.MarkReadPayload{MessageID: domain.MessageID(args[0])})
	case "who":
		return command{local: localWho}, nil
	case "history":
		if rest != "" {
			if _, err := strconv.Atoi(rest); err != nil {
				return command{}, fmt.Errorf("usage: /history [limit]")
			}
		}
		return command{local: localHistory, arg: rest}, nil
	case "search":
		if rest == "" {
			return command{}, fmt.Errorf("usage: /search <words>")
		}
		return command{local: localSearch, arg: rest}, nil
	case "help":
		return command{local: localHelp}, nil
	case "quit", "exit":
		return command{local: localQuit}, nil
	default:
		return command{}, fmt.Errorf("unknown command /%s, try /help", name)
	}
}

func send(ref string, payload services.SendMessagePayload, target domain.Destination) (command, error) {
	payload.Room, payload.RecipientID = target.Room, target.Recipient
	return frame(services.SendMessageEvent, ref, payload)
}

func frame(name, ref string, payload any) (command, error) {
	f, err := services.NewFrame(name, ref, payload)
	if err != nil {
		return command{}, err
	}
	return command{frame: &f}, nil
}
