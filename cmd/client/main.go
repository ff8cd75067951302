package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/pocketscrum/internal/app"
	"github.com/dkeye/pocketscrum/internal/config"
	"github.com/dkeye/pocketscrum/internal/domain"
	"github.com/dkeye/pocketscrum/internal/results"
	"github.com/dkeye/pocketscrum/internal/storage"
	"github.com/dkeye/pocketscrum/internal/transport"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	kv, err := storage.OpenFile(stateFilePath(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open state store")
	}

	conn := transport.New(transport.Options{
		URL:         cfg.ServerURL,
		DialTimeout: cfg.DialTimeout,
		RetryDelay:  cfg.ReconnectDelay,
		MaxRetries:  cfg.ReconnectAttempts,
	})
	engine := app.NewEngine(conn, kv, cfg.ResumeWindow)
	defer engine.Close()

	go watchFeeds(ctx, engine)

	if err := engine.Resumer.Resume(ctx); err != nil {
		log.Warn().Err(err).Msg("session resume failed")
	}

	fmt.Println("pocketscrum — type 'help' for commands")
	repl(ctx, engine, kv)
	log.Info().Msg("bye")
}

func stateFilePath(cfg *config.Config) string {
	if cfg.StateFile != "" {
		return cfg.StateFile
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "pocketscrum_state.json"
	}
	return filepath.Join(dir, "pocketscrum", "state.json")
}

// watchFeeds prints every state, results and error update until ctx ends.
func watchFeeds(ctx context.Context, engine *app.Engine) {
	states, cancelStates := engine.Store.Subscribe()
	defer cancelStates()
	res, cancelRes := engine.Results.Subscribe()
	defer cancelRes()
	errs, cancelErrs := engine.Errors.Subscribe()
	defer cancelErrs()

	for {
		select {
		case <-ctx.Done():
			return
		case st := <-states:
			printState(st)
		case rs := <-res:
			if rs != nil {
				printResults(*rs)
			}
		case se := <-errs:
			if se != nil {
				fmt.Printf("!! %s\n", se.Message)
			}
		}
	}
}

func printState(st domain.SessionState) {
	if st.Room == nil {
		fmt.Println("-- not in a room")
		return
	}
	fmt.Printf("-- room %s [%s]\n", st.Room.Code, st.Room.Phase)
	for _, u := range st.Room.Users {
		marker := " "
		if u.HasVoted {
			marker = "*"
		}
		line := fmt.Sprintf("   %s %s", marker, u.Identity.Name)
		if u.RevealedValue != nil {
			line += fmt.Sprintf(" -> %d", *u.RevealedValue)
		}
		if st.Self != nil && st.Self.ID == u.Identity.ID {
			line += " (you)"
		}
		fmt.Println(line)
	}
}

func printResults(rs domain.ResultSet) {
	summary := results.Aggregate(rs)
	fmt.Printf("-- results (%d votes)\n", summary.Total)
	for _, g := range summary.Groups {
		mark := "  "
		if g.Winning {
			mark = "=>"
		}
		fmt.Printf(" %s %d: %d (%s)\n", mark, g.Value, g.Count, strings.Join(g.Users, ", "))
	}
}

func repl(ctx context.Context, engine *app.Engine, kv storage.KV) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "help":
			fmt.Println("commands: name <name> | create | join <code> | vote <card> | reveal | reset | leave | forceleave | cards | quit")
		case "name":
			if len(fields) < 2 {
				fmt.Println("usage: name <name>")
				continue
			}
			setName(engine, kv, strings.Join(fields[1:], " "))
		case "create":
			name, ok := storedName(kv)
			if !ok {
				continue
			}
			_ = engine.Gateway.CreateRoom(ctx, name)
		case "join":
			if len(fields) < 2 {
				fmt.Println("usage: join <code>")
				continue
			}
			name, ok := storedName(kv)
			if !ok {
				continue
			}
			_ = engine.Gateway.JoinRoom(ctx, fields[1], name)
		case "vote":
			if len(fields) < 2 {
				fmt.Println("usage: vote <card>")
				continue
			}
			card, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("card must be a number")
				continue
			}
			_ = engine.Gateway.CastVote(card)
		case "reveal":
			engine.Gateway.RequestReveal()
		case "reset":
			engine.Gateway.RequestReset()
		case "leave":
			engine.Gateway.LeaveRoom()
		case "forceleave":
			engine.Gateway.ForceLeave()
		case "cards":
			fmt.Println(domain.Deck)
		case "quit", "exit":
			return
		default:
			fmt.Println("unknown command, try 'help'")
		}
	}
}

func setName(engine *app.Engine, kv storage.KV, raw string) {
	name, err := domain.NormalizeName(raw)
	if err != nil {
		fmt.Printf("!! %v\n", err)
		return
	}
	// Changing identity abandons any held room without a server round-trip.
	engine.Gateway.ForceLeave()
	if err := storage.SaveName(kv, name); err != nil {
		log.Warn().Err(err).Msg("persist name")
	}
	fmt.Printf("hello, %s\n", name)
}

func storedName(kv storage.KV) (string, bool) {
	name, ok := storage.LoadName(kv)
	if !ok {
		fmt.Println("set your name first: name <name>")
	}
	return name, ok
}
