package main

import (
	"bufio"
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hanrail/hanrail/internal/config"
	"github.com/hanrail/hanrail/internal/notify"
	"github.com/hanrail/hanrail/internal/rail"
	"github.com/hanrail/hanrail/internal/rail/korail"
	"github.com/hanrail/hanrail/internal/rail/srt"
	"github.com/hanrail/hanrail/internal/stations"
	"github.com/hanrail/hanrail/internal/store"
	"github.com/hanrail/hanrail/internal/watcher"
)

func main() {
	log.Println("Starting hanrail...")

	// Load configuration (.env is optional)
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env")
	}
	cfg := config.Load()
	log.Printf("Config loaded: backend=%s, %s→%s, date=%s", cfg.Backend, cfg.Departure, cfg.Arrival, cfg.Date)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ═══════════════════════════════════════════════════════
	// PHASE 1: Local state
	// ═══════════════════════════════════════════════════════
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure store schema: %v", err)
	}

	id, password := cfg.LoginID, cfg.Password
	if id == "" || password == "" {
		id, password, err = st.Credentials(ctx, cfg.Backend)
		if err != nil {
			log.Fatalf("No credentials: set HANRAIL_ID/HANRAIL_PASSWORD or store them first (%v)", err)
		}
	} else if err := st.SetCredentials(ctx, cfg.Backend, id, password); err != nil {
		log.Printf("Warning: failed to persist credentials: %v", err)
	}

	deviceKey, err := st.DeviceKey(ctx)
	if err != nil {
		log.Fatalf("Failed to resolve device key: %v", err)
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 2: Notice delivery
	// ═══════════════════════════════════════════════════════
	var notifier notify.Notifier = notify.Log{}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		notifier = &notify.Telegram{Token: cfg.TelegramToken, ChatID: cfg.TelegramChatID}
		log.Println("Telegram delivery enabled")
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 3: Backend client and login
	// ═══════════════════════════════════════════════════════
	queueNotify := func(waiting int) {
		log.Printf("현재 %d명 대기중...", waiting)
	}

	var client rail.Client
	switch cfg.Backend {
	case "korail":
		client = korail.New(korail.Options{
			ID:          id,
			Password:    password,
			QueueNotify: queueNotify,
		})
	case "srt":
		client = srt.New(srt.Options{
			ID:          id,
			Password:    password,
			DeviceKey:   deviceKey,
			Catalog:     stations.SRT(),
			WindowSeat:  cfg.WindowPref(),
			QueueNotify: queueNotify,
		})
	default:
		log.Fatalf("Unknown backend %q (want srt or korail)", cfg.Backend)
	}

	if _, err := client.Login(ctx); err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	defer func() {
		if err := client.Logout(context.Background()); err != nil {
			log.Printf("Logout failed: %v", err)
		}
	}()

	// ═══════════════════════════════════════════════════════
	// PHASE 4: Watch until reserved
	// ═══════════════════════════════════════════════════════
	w := watcher.New(watcher.Options{
		Client:     client,
		Query:      cfg.Query(),
		Preference: rail.ParseSeatPreference(cfg.SeatPreference),
		Trains:     cfg.Trains,
		Notifier:   notifier,
		Decider:    confirmOnStdin,
	})

	reservation, err := w.Run(ctx)
	if err != nil {
		log.Fatalf("Watcher stopped: %v", err)
	}

	log.Printf("예매 성공: %s", reservation.Describe())
	log.Println("Goodbye!")
}

// confirmOnStdin asks the operator whether to keep going after an
// unrecognized error. Anything but an explicit "n" continues.
func confirmOnStdin(err error) bool {
	log.Printf("Unrecognized error: %v", err)
	os.Stdout.WriteString("계속할까요? [Y/n] ")

	reader := bufio.NewReader(os.Stdin)
	line, readErr := reader.ReadString('\n')
	if readErr != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer != "n" && answer != "no"
}
