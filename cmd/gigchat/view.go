package main

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/ammar1510/gigchat/internal/conversation"
	"github.com/ammar1510/gigchat/internal/models"
)

// view prints manager snapshots as an append-only transcript.
type view struct {
	mu     sync.Mutex
	w      io.Writer
	userID string

	active    string
	printed   int
	connected bool
	known     bool
}

func newView(w io.Writer, userID string) *view {
	return &view{w: w, userID: userID}
}

func (v *view) println(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.w, format+"\n", args...)
}

func (v *view) notify(n conversation.Notification) {
	if n.Kind == conversation.NotifyError {
		v.println("! %s", n.Message)
		return
	}
	v.println("* %s", n.Message)
}

func (v *view) participants(s conversation.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(s.Participants) == 0 {
		fmt.Fprintln(v.w, "No conversations yet.")
		return
	}
	for i, p := range s.Participants {
		marker := " "
		if p.ID == s.Active {
			marker = ">"
		}
		fmt.Fprintf(v.w, "%s %d. %s (%s)\n", marker, i+1, p.DisplayName(), p.Role)
	}
}

// render prints what changed since the last snapshot. A new active thread
// or a replaced history reprints the thread from the top.
func (v *view) render(s conversation.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.known || s.Connected != v.connected {
		v.known = true
		v.connected = s.Connected
		if s.Connected {
			fmt.Fprintln(v.w, "-- connected")
		} else {
			fmt.Fprintln(v.w, "-- disconnected")
		}
	}

	if s.Active != v.active || len(s.Messages) < v.printed {
		v.active = s.Active
		v.printed = 0
		if s.Active != "" {
			fmt.Fprintf(v.w, "== %s\n", v.name(s, s.Active))
		}
	}
	if s.State == conversation.StateLoadingHistory {
		return
	}
	for _, message := range s.Messages[v.printed:] {
		fmt.Fprintf(v.w, "[%s] %s: %s\n", message.CreatedAt.Local().Format("15:04"), v.sender(s, message), message.Body)
	}
	v.printed = len(s.Messages)
}

func (v *view) sender(s conversation.Snapshot, message models.Message) string {
	if message.SenderID.ID == v.userID {
		return "you"
	}
	if name := message.SenderID.Name(); name != "" {
		return name
	}
	return v.name(s, message.SenderID.ID)
}

func (v *view) name(s conversation.Snapshot, id string) string {
	for _, p := range s.Participants {
		if p.ID == id {
			return p.DisplayName()
		}
	}
	return id
}

// resolveSelection accepts a 1-based list position or a participant id.
func resolveSelection(participants []models.Participant, arg string) (string, bool) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(participants) {
			return "", false
		}
		return participants[n-1].ID, true
	}
	for _, p := range participants {
		if p.ID == arg {
			return p.ID, true
		}
	}
	return "", false
}
