package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/kapu/corrchess-bot/internal/config"
	"github.com/kapu/corrchess-bot/internal/engine"
	"github.com/kapu/corrchess-bot/internal/match"
	"github.com/kapu/corrchess-bot/internal/msgcat"
	"github.com/kapu/corrchess-bot/internal/obslog"
	"github.com/kapu/corrchess-bot/internal/pinggate"
	"github.com/kapu/corrchess-bot/internal/relay"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	cat, err := msgcat.New(os.Getenv("MESSAGE_OVERRIDE_DIR"))
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	client := relay.NewClient(cfg.RelayBaseURL)
	ws := relay.NewWebSocket(cfg.RelayWSURL, 5, time.Second)
	ws.OnStateChange(func(state relay.WebSocketState) {
		obslog.L().Info("ws_state", zap.String("state", string(state)))
	})
	egress := relay.NewEgress(os.Getenv("RELAY_EGRESS_MODE"), client, ws, obslog.L())

	mgr, err := match.NewManager(cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("session manager init error: %v", err)
	}
	if cfg.DatabaseURL != "" {
		repo, err := match.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("repository init error: %v", err)
		}
		defer repo.Close()
		mgr.AttachRepository(repo)
	}
	mgr.AttachPingGate(pinggate.New(mgr.Redis(), cfg.PingCooldown))

	bot := &bot{cfg: cfg, cat: cat, egress: egress, mgr: mgr}

	ws.OnMessage(func(msg *relay.Message) {
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			return
		}
		if !strings.HasPrefix(strings.TrimSpace(msg.Content), cfg.BotPrefix) {
			return
		}
		// keep the WS read loop free
		go bot.handle(msg)
	})

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ws.Connect(cctx); err != nil {
		cancel()
		log.Fatalf("ws connect error: %v", err)
	}
	cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	_ = ws.Close(context.Background())
	_ = mgr.Close()
}

type bot struct {
	cfg    *appcfg.AppConfig
	cat    *msgcat.Catalog
	egress relay.Egress
	mgr    *match.Manager
}

func (b *bot) handle(msg *relay.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(msg.Content), b.cfg.BotPrefix))
	if raw == "" {
		b.say(ctx, msg.Room, "help.text", map[string]any{"Prefix": b.cfg.BotPrefix})
		return
	}
	parts := strings.Fields(raw)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help":
		b.say(ctx, msg.Room, "help.text", map[string]any{"Prefix": b.cfg.BotPrefix})
	case "newgame":
		b.handleNewGame(ctx, msg)
	case "join":
		b.handleJoin(ctx, msg, args)
	case "games":
		b.handleGames(ctx, msg)
	case "setactive":
		b.handleSetActive(ctx, msg, args)
	case "board":
		b.handleBoard(ctx, msg)
	case "ping":
		b.handlePing(ctx, msg)
	case "resign":
		b.handleResign(ctx, msg)
	case "claimdraw":
		b.handleClaimDraw(ctx, msg)
	default:
		// anything else is a move attempt
		b.handleMove(ctx, msg, raw)
	}
}

func (b *bot) handleNewGame(ctx context.Context, msg *relay.Message) {
	sess, created, err := b.mgr.CreateSession(ctx, msg.SenderID, msg.SenderName)
	if err != nil {
		b.sayError(ctx, msg.Room, err)
		return
	}
	key := "session.created"
	if !created {
		key = "session.created_again"
	}
	b.say(ctx, msg.Room, key, map[string]any{
		"InviteLink": b.inviteLink(sess.InviteToken),
		"Token":      sess.InviteToken,
	})
}

func (b *bot) handleJoin(ctx context.Context, msg *relay.Message, args []string) {
	if len(args) == 0 {
		b.say(ctx, msg.Room, "error.invite_invalid", nil)
		return
	}
	sess, err := b.mgr.JoinSession(ctx, args[0], msg.SenderID, msg.SenderName)
	if err != nil {
		b.sayError(ctx, msg.Room, err)
		return
	}
	b.say(ctx, msg.Room, "session.joined", map[string]any{
		"WhiteName": sess.WhiteName,
		"BlackName": sess.BlackName,
	})
}

func (b *bot) handleGames(ctx context.Context, msg *relay.Message) {
	list, err := b.mgr.ListSessions(ctx, msg.SenderID)
	if err != nil {
		b.sayError(ctx, msg.Room, err)
		return
	}
	if len(list) == 0 {
		b.say(ctx, msg.Room, "session.list_empty", nil)
		return
	}
	active, _ := b.mgr.ActiveSession(ctx, msg.SenderID)

	var lines []string
	header, err := b.cat.Render("session.list_header", nil)
	if err == nil {
		lines = append(lines, header)
	}
	for i, sess := range list {
		marker := ""
		if active != nil && active.ID == sess.ID {
			marker = "(active)"
		}
		entry, err := b.cat.Render("session.list_entry", map[string]any{
			"Index":    i + 1,
			"Opponent": opponentName(sess, msg.SenderID),
			"Status":   string(sess.Status),
			"Marker":   marker,
		})
		if err != nil {
			continue
		}
		lines = append(lines, entry)
	}
	b.send(ctx, msg.Room, strings.Join(lines, "\n"))
}

func (b *bot) handleSetActive(ctx context.Context, msg *relay.Message, args []string) {
	if len(args) == 0 {
		b.say(ctx, msg.Room, "error.internal", nil)
		return
	}
	list, err := b.mgr.ListSessions(ctx, msg.SenderID)
	if err != nil {
		b.sayError(ctx, msg.Room, err)
		return
	}
	// accept either a list index or a session id
	target := args[0]
	if n, err := strconv.Atoi(target); err == nil && n >= 1 && n <= len(list) {
		target = list[n-1].ID
	}
	sess, err := b.mgr.SetActive(ctx, msg.SenderID, target)
	if err != nil {
		b.sayError(ctx, msg.Room, err)
		return
	}
	b.say(ctx, msg.Room, "session.switched", map[string]any{
		"Opponent": opponentName(sess, msg.SenderID),
	})
}

func (b *bot) handleBoard(ctx context.Context, msg *relay.Message) {
	sess, err := b.mgr.ActiveSession(ctx, msg.SenderID)
	if err != nil {
		b.sayError(ctx, msg.Room, err)
		return
	}
	if sess == nil {
		b.say(ctx, msg.Room, "session.none_active", map[string]any{"Prefix": b.cfg.BotPrefix})
		return
	}
	pos, _, err := engine.Replay(sess.MovesUCI)
	if err != nil {
		b.sayError(ctx, msg.Room, err)
		return
	}
	b.send(ctx, msg.Room, pos.Diagram()+"\n"+sess.FEN)
}

func (b *bot) handleMove(ctx context.Context, msg *relay.Message, text string) {
	sess, san, err := b.mgr.SubmitMove(ctx, msg.SenderID, text)
	if err != nil {
		b.sayError(ctx, msg.Room, err)
		return
	}

	name := nameFor(sess, msg.SenderID)
	turnName := nameForColor(sess, sess.Turn)
	data := map[string]any{
		"Name": name, "SAN": san, "TurnName": turnName, "Prefix": b.cfg.BotPrefix,
	}

	switch {
	case sess.Method == "checkmate":
		b.say(ctx, msg.Room, "move.checkmate", data)
	case sess.Method == "stalemate":
		b.say(ctx, msg.Room, "move.stalemate", data)
	case sess.Method == "insufficient material":
		b.say(ctx, msg.Room, "move.insufficient", data)
	case sess.DrawClaimable:
		b.say(ctx, msg.Room, "move.draw_claimable", data)
	case strings.HasSuffix(san, "+"):
		b.say(ctx, msg.Room, "move.check", data)
	default:
		b.say(ctx, msg.Room, "move.played", data)
	}
}

func (b *bot) handlePing(ctx context.Context, msg *relay.Message) {
	sess, receipt, remaining, err := b.mgr.TryPing(ctx, msg.SenderID)
	switch {
	case errors.Is(err, match.ErrPingOwnTurn):
		b.say(ctx, msg.Room, "ping.not_waiting", nil)
		return
	case errors.Is(err, pinggate.ErrCooldown):
		b.say(ctx, msg.Room, "ping.cooldown", map[string]any{
			"Remaining": remaining.Round(time.Minute).String(),
		})
		return
	case err != nil:
		b.sayError(ctx, msg.Room, err)
		return
	}

	opponent := opponentName(sess, msg.SenderID)
	reminder := fmt.Sprintf("%s: it's your move against %s.", opponent, nameFor(sess, msg.SenderID))
	if err := b.egress.SendText(ctx, msg.Room, reminder); err != nil {
		// delivery failed, give the window back
		_ = b.mgr.RollbackPing(ctx, receipt)
		obslog.L().Warn("ping_delivery_failed",
			zap.String("session_id", sess.ID),
			zap.String("user_id", msg.SenderID),
			zap.Error(err),
		)
		b.say(ctx, msg.Room, "ping.failed", nil)
		return
	}
	b.say(ctx, msg.Room, "ping.sent", map[string]any{"Opponent": opponent})
}

func (b *bot) handleResign(ctx context.Context, msg *relay.Message) {
	sess, err := b.mgr.Resign(ctx, msg.SenderID)
	if err != nil {
		b.sayError(ctx, msg.Room, err)
		return
	}
	b.say(ctx, msg.Room, "finish.resigned", map[string]any{
		"Name":   nameFor(sess, msg.SenderID),
		"Winner": nameFor(sess, sess.Winner),
	})
}

func (b *bot) handleClaimDraw(ctx context.Context, msg *relay.Message) {
	sess, err := b.mgr.ClaimDraw(ctx, msg.SenderID)
	if err != nil {
		b.sayError(ctx, msg.Room, err)
		return
	}
	b.say(ctx, msg.Room, "finish.draw_claimed", map[string]any{
		"Name": nameFor(sess, msg.SenderID),
	})
}

// say renders a catalog message and sends it; sayError maps flow-control
// errors onto the catalog's error strings.
func (b *bot) say(ctx context.Context, room, key string, data map[string]any) {
	out, err := b.cat.Render(key, data)
	if err != nil {
		obslog.L().Error("msgcat_render_error", zap.String("key", key), zap.Error(err))
		return
	}
	b.send(ctx, room, out)
}

func (b *bot) send(ctx context.Context, room, text string) {
	if err := b.egress.SendText(ctx, room, text); err != nil {
		obslog.L().Error("send_error", zap.String("room", room), zap.Error(err))
	}
}

func (b *bot) sayError(ctx context.Context, room string, err error) {
	key := "error.internal"
	switch {
	case errors.Is(err, engine.ErrInvalidNotation):
		key = "error.invalid_notation"
	case errors.Is(err, engine.ErrIllegalMove):
		key = "error.illegal_move"
	case errors.Is(err, match.ErrNotYourTurn), errors.Is(err, match.ErrStalePosition):
		key = "error.not_your_turn"
	case errors.Is(err, match.ErrInviteInvalid):
		key = "error.invite_invalid"
	case errors.Is(err, match.ErrDuplicatePairing):
		key = "error.duplicate_pairing"
	case errors.Is(err, match.ErrSessionFinished):
		key = "error.session_finished"
	case errors.Is(err, match.ErrAwaitingOpponent):
		key = "error.awaiting_opponent"
	case errors.Is(err, match.ErrDrawNotClaimable):
		key = "error.draw_not_claimable"
	case errors.Is(err, match.ErrSessionNotFound), errors.Is(err, match.ErrNotParticipant):
		key = "session.none_active"
	case errors.Is(err, match.ErrStorageUnavailable):
		key = "error.storage"
	default:
		obslog.L().Error("command_error", zap.Error(err))
	}
	b.say(ctx, room, key, map[string]any{"Prefix": b.cfg.BotPrefix})
}

func (b *bot) inviteLink(token string) string {
	base := strings.TrimSpace(b.cfg.InviteLinkBase)
	if base == "" {
		return token
	}
	if strings.Contains(base, "%s") {
		return fmt.Sprintf(base, token)
	}
	return strings.TrimRight(base, "/") + "/" + token
}

func opponentName(sess *match.Session, userID string) string {
	if sess.WhiteID == userID {
		return orID(sess.BlackName, sess.BlackID)
	}
	return orID(sess.WhiteName, sess.WhiteID)
}

func nameFor(sess *match.Session, userID string) string {
	if sess.WhiteID == userID {
		return orID(sess.WhiteName, sess.WhiteID)
	}
	return orID(sess.BlackName, sess.BlackID)
}

func nameForColor(sess *match.Session, c match.Color) string {
	if c == match.White {
		return orID(sess.WhiteName, sess.WhiteID)
	}
	return orID(sess.BlackName, sess.BlackID)
}

func orID(name, id string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return id
}
