package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/vedran77/onionparts/internal/chat"
	"github.com/vedran77/onionparts/internal/domain"
	"github.com/vedran77/onionparts/pkg/money"
)

var chatCmd = &cobra.Command{
	Use:   "chat <room-id>",
	Short: "Open a conversation and chat interactively.",
	Long: "Open a conversation and chat interactively. Type a line to send it.\n" +
		"Commands: /image <path> sends a picture, /leave leaves the room, /quit exits.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := uuid.Parse(args[0])
		if err != nil {
			return errors.Wrapf(err, "invalid room id %q", args[0])
		}

		ctx := cmd.Context()
		c, me, err := login(ctx)
		if err != nil {
			return err
		}

		view, err := c.RoomView(ctx, roomID)
		if err != nil {
			return errors.Wrap(err, "opening room")
		}

		term := newTerminal(cmd.OutOrStdout(), me.User, view.OtherUserName)
		session := chat.NewSession(chat.Config{
			RoomID:    roomID,
			UserID:    me.User.ID,
			Backend:   c,
			Feed:      c,
			Uploader:  chat.NewUploader(c),
			Navigator: term,
			Listener:  term,
		})
		defer session.Close()

		if err := session.Open(ctx, view.Messages); err != nil {
			return errors.Wrap(err, "subscribing to room")
		}
		jww.INFO.Printf("Subscribed to room %s", roomID)

		term.header(view)
		for _, m := range session.Messages() {
			term.OnMessage(m)
		}

		return term.loop(ctx, session, os.Stdin)
	},
}

// terminal renders a session to a writer and turns input lines into session
// calls.
type terminal struct {
	mu        sync.Mutex
	out       io.Writer
	me        domain.User
	otherName string
	left      chan struct{}
	leaveOnce sync.Once
}

func newTerminal(out io.Writer, me domain.User, otherName string) *terminal {
	return &terminal{out: out, me: me, otherName: otherName, left: make(chan struct{})}
}

func (t *terminal) header(view *domain.RoomView) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p := view.Room.Product; p != nil {
		fmt.Fprintf(t.out, "== %s (%s) with %s ==\n", p.Title, money.FormatKRW(p.Price), t.otherName)
	} else {
		fmt.Fprintf(t.out, "== conversation with %s ==\n", t.otherName)
	}
}

func (t *terminal) OnMessage(msg domain.Message) {
	name := t.otherName
	if msg.SenderID == t.me.ID {
		name = "me"
	}
	text := msg.Content
	if msg.Kind == domain.MessageKindImage && msg.ImageURL != nil {
		text = fmt.Sprintf("%s <%s>", msg.Content, *msg.ImageURL)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "[%s] %s: %s\n", msg.CreatedAt.Local().Format("15:04"), name, text)
}

func (t *terminal) OnError(err error) {
	jww.ERROR.Printf("chat: %+v", err)

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "! %v\n", err)
}

func (t *terminal) Navigate(route string) {
	if route == chat.ChatsRoute {
		t.leaveOnce.Do(func() { close(t.left) })
	}
}

// loop reads commands until input ends, the user quits or leaves, or ctx is
// cancelled.
func (t *terminal) loop(ctx context.Context, s *chat.Session, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.left:
			fmt.Fprintln(t.out, "You left the conversation.")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := t.handle(ctx, s, line); quit {
				return nil
			}
		}
	}
}

// handle runs one input line. Failures are already reported through OnError.
func (t *terminal) handle(ctx context.Context, s *chat.Session, line string) bool {
	switch {
	case line == "/quit":
		return true
	case line == "/leave":
		if err := s.Leave(ctx); err != nil {
			jww.DEBUG.Printf("Leave failed, staying in room: %v", err)
		}
	case strings.HasPrefix(line, "/image "):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/image "))
		if err := sendImage(ctx, s, path); err != nil {
			t.OnError(err)
		}
	default:
		if err := s.SendText(ctx, line); errors.Is(err, chat.ErrEmptyMessage) {
			jww.DEBUG.Printf("Ignoring empty line")
		}
	}
	return false
}

func sendImage(ctx context.Context, s *chat.Session, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening image")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "reading image size")
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		head := make([]byte, 512)
		n, _ := f.Read(head)
		contentType = http.DetectContentType(head[:n])
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return errors.Wrap(err, "rewinding image")
		}
	}

	// SendImage reports its own failures through the listener.
	if err := s.SendImage(ctx, chat.Attachment{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
		Body:        f,
	}); err != nil {
		jww.DEBUG.Printf("Image %s not sent: %v", path, err)
	}
	return nil
}
