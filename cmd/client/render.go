package main

import (
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"chat-fanout/services"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

// printer renders server frames on the terminal.
type printer struct {
	out     io.Writer
	colours bool
}

func (p printer) style(s color.Style, text string) string {
	if !p.colours {
		return text
	}
	return s.Render(text)
}

func (p printer) info(format string, args ...any) {
	fmt.Fprintln(p.out, p.style(color.New(color.FgGray), fmt.Sprintf(format, args...)))
}

func (p printer) fail(format string, args ...any) {
	fmt.Fprintln(p.out, p.style(color.New(color.FgRed, color.OpBold), fmt.Sprintf(format, args...)))
}

// notification prints a server pushed frame and updates st.
func (p printer) notification(f services.Frame, st *state) {
	switch f.Event {
	case event.MessageDeliveredName:
		var e event.MessageDelivered
		if decode(f, &e) == nil {
			p.message(e.Message, st.userID)
		}
	case event.PresenceChangedName:
		var e event.PresenceChanged
		if decode(f, &e) == nil {
			st.online = e.Online
			p.info("* %s is %s (%d online)", e.User.Username, e.Status, len(e.Online))
		}
	case event.RoomMembersName:
		var e event.RoomMembers
		if decode(f, &e) == nil {
			p.info("* #%s members: %s", e.Room, names(e.Members))
		}
	case event.RoomJoinedName:
		var e event.RoomJoined
		if decode(f, &e) == nil {
			p.info("* %s joined #%s", e.User.Username, e.Room)
		}
	case event.RoomLeftName:
		var e event.RoomLeft
		if decode(f, &e) == nil {
			p.info("* %s left #%s", e.User.Username, e.Room)
		}
	case event.TypingChangedName:
		var e event.TypingChanged
		if decode(f, &e) == nil && len(e.Users) > 0 {
			p.info("* %s typing in %s", names(e.Users), e.Target.String())
		}
	case event.ReactionsUpdatedName:
		var e event.ReactionsUpdated
		if decode(f, &e) == nil {
			reactions := lo.Map(e.Reactions, func(r domain.Reaction, _ int) string { return r.Emoji })
			p.info("* reactions on %s: %s", e.MessageID, strings.Join(reactions, " "))
		}
	case event.MessageReadName:
		var e event.MessageRead
		if decode(f, &e) == nil {
			p.info("* %s read by %s", e.MessageID, e.By)
		}
	case event.SessionSupersededName:
		p.fail("session opened elsewhere, disconnecting")
	}
}

func (p printer) message(m domain.Message, self domain.UserID) {
	where := "#" + string(m.Destination.Room)
	if m.Destination.IsPrivate() {
		where = "dm"
	}
	author := p.style(color.New(color.FgCyan, color.OpBold), m.SenderName)
	if m.SenderID == self {
		author = p.style(color.New(color.FgGreen, color.OpBold), m.SenderName)
	}
	body := m.Body
	if m.Kind == domain.KindFile {
		body = p.style(color.New(color.FgBlue, color.OpUnderscore), m.Body)
	}
	fmt.Fprintf(p.out, "[%s %s] %s: %s  (%s)\n", m.CreatedAt.Local().Format("15:04:05"), where, author, body, m.ID)
}

func (p printer) users(users []domain.User) {
	table := newTable(p.out)
	table.SetHeader([]string{"Username", "User ID"})
	for _, u := range users {
		table.Append([]string{u.Username, string(u.ID)})
	}
	table.Render()
}

func (p printer) messages(messages []domain.Message) {
	table := newTable(p.out)
	table.SetHeader([]string{"Time", "From", "Body", "Reactions", "ID"})
	// Pages are newest first, print oldest first
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		reactions := lo.Map(m.Reactions, func(r domain.Reaction, _ int) string { return r.Emoji })
		table.Append([]string{
			m.CreatedAt.Local().Format("01-02 15:04:05"),
			m.SenderName,
			m.Body,
			strings.Join(reactions, " "),
			string(m.ID),
		})
	}
	table.Render()
}

func newTable(out io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func names(users []domain.User) string {
	return strings.Join(lo.Map(users, func(u domain.User, _ int) string { return u.Username }), ", ")
}

func decode(f services.Frame, v any) error {
	return json.Unmarshal(f.Payload, v)
}
