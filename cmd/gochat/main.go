package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/npezzotti/go-chatclient/internal/api"
	"github.com/npezzotti/go-chatclient/internal/cache"
	"github.com/npezzotti/go-chatclient/internal/calendar"
	"github.com/npezzotti/go-chatclient/internal/client"
	"github.com/npezzotti/go-chatclient/internal/config"
	"github.com/npezzotti/go-chatclient/internal/stats"
	"github.com/npezzotti/go-chatclient/internal/types"
)

var (
	serverURL string
	cachePath string
	timeout   time.Duration
)

func main() {
	_ = godotenv.Load()

	envCfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	flag.StringVar(&serverURL, "server", envCfg.ServerURL, "chat server base URL")
	flag.StringVar(&cachePath, "cache-path", envCfg.CachePath, "directory for the local message cache (empty disables)")
	flag.DurationVar(&timeout, "timeout", envCfg.RequestTimeout, "request timeout")
	flag.Parse()

	logger := log.New(os.Stderr, "[gochat] ", log.LstdFlags)

	cfg, err := config.NewConfig(serverURL, timeout, envCfg.ReconnectInitial, envCfg.ReconnectMax, cachePath)
	if err != nil {
		logger.Fatal("config: ", err)
	}

	apiClient, err := api.NewClient(logger, cfg)
	if err != nil {
		logger.Fatal("api client: ", err)
	}

	var logCache client.LogCache
	if cfg.CachePath != "" {
		roomCache, err := cache.Open(cfg.CachePath, logger)
		if err != nil {
			logger.Fatal("open cache: ", err)
		}
		defer func() {
			if err := roomCache.Close(); err != nil {
				logger.Println("close cache:", err)
			}
		}()
		logCache = roomCache
	}

	clientStats := stats.NewClientStats()
	clientStats.Run()
	defer clientStats.Stop()

	push, err := client.NewPushChannel(logger, apiClient.WebsocketURL(), apiClient.Jar(),
		clientStats, cfg.ReconnectInitial, cfg.ReconnectMax)
	if err != nil {
		logger.Fatal("push channel: ", err)
	}

	store := client.NewMessageStore(logger, logCache)
	dir := client.NewRoomDirectory(logger)

	session := client.NewChatSession(logger, apiClient, push, store, dir, clientStats,
		func(msg types.Message) {
			fmt.Printf("%s: %s\n", msg.Sender, msg.Body)
		})
	go session.Run()
	defer session.Close()

	events := calendar.NewEventStore(logger, apiClient)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	fmt.Println("connected to", cfg.ServerURL, "- type /help for commands")

	for {
		select {
		case sig := <-sigs:
			logger.Printf("received signal: %s", sig)
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := dispatch(session, apiClient, events, line); quit {
				return
			}
		}
	}
}

func dispatch(session *client.ChatSession, apiClient *api.Client, events *calendar.EventStore, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	ctx := context.Background()

	if !strings.HasPrefix(line, "/") {
		if err := session.Send(ctx, line); err != nil {
			fmt.Println("!", session.LastError())
		}
		return false
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		printHelp()
	case "/login":
		if len(args) != 2 {
			fmt.Println("usage: /login <username> <password>")
			return false
		}
		if err := session.Login(ctx, args[0], args[1]); err != nil {
			fmt.Println("!", session.LastError())
			return false
		}
		printRooms(session)
	case "/register":
		if len(args) != 2 {
			fmt.Println("usage: /register <username> <password>")
			return false
		}
		if err := session.Register(ctx, args[0], args[1]); err != nil {
			fmt.Println("!", session.LastError())
			return false
		}
		fmt.Println("Registration successful. Please log in.")
	case "/logout":
		if err := session.Logout(ctx); err != nil {
			fmt.Println("logout failed on the server; local session cleared")
		}
	case "/rooms":
		printRooms(session)
	case "/users":
		users, err := apiClient.Users(ctx)
		if err != nil {
			fmt.Println("!", api.UserMessage(err))
			return false
		}
		for _, user := range users {
			fmt.Println(user)
		}
	case "/join":
		if len(args) != 1 {
			fmt.Println("usage: /join <chat-id>")
			return false
		}
		chatId, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Println("chat id must be a number")
			return false
		}
		if err := session.SelectRoom(ctx, chatId); err != nil {
			fmt.Println("!", session.LastError())
			return false
		}
		for _, msg := range session.Messages() {
			fmt.Printf("%s: %s\n", msg.Sender, msg.Body)
		}
	case "/create":
		if len(args) < 1 {
			fmt.Println("usage: /create <name> [participant...]")
			return false
		}
		if err := session.CreateRoom(ctx, args[0], args[1:]); err != nil {
			fmt.Println("!", session.LastError())
		}
	case "/private":
		if len(args) != 1 {
			fmt.Println("usage: /private <username>")
			return false
		}
		if err := session.CreatePrivateRoom(ctx, args[0]); err != nil {
			fmt.Println("!", session.LastError())
		}
	case "/add":
		if len(args) != 1 {
			fmt.Println("usage: /add <username>")
			return false
		}
		if err := session.AddParticipant(ctx, args[0]); err != nil {
			fmt.Println("!", session.LastError())
		}
	case "/clear":
		if len(args) != 1 {
			fmt.Println("usage: /clear <chat-id>")
			return false
		}
		chatId, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Println("chat id must be a number")
			return false
		}
		if err := session.ClearRoom(ctx, chatId); err != nil {
			fmt.Println("!", session.LastError())
		}
	case "/events":
		if err := events.Load(ctx); err != nil {
			fmt.Println("!", err)
			return false
		}
		byDate := events.ByDate()
		for _, date := range events.Dates() {
			fmt.Println(date)
			for _, ev := range byDate[date] {
				fmt.Printf("  [%d] %s %s\n", ev.Id, ev.Title, ev.Description)
			}
		}
	case "/event":
		if len(args) < 2 {
			fmt.Println("usage: /event <date> <title...>")
			return false
		}
		err := events.Create(ctx, types.CalendarEvent{
			Date:  args[0],
			Title: strings.Join(args[1:], " "),
		})
		if err != nil {
			fmt.Println("!", err)
		}
	case "/quit":
		return true
	default:
		fmt.Println("unknown command:", cmd)
	}

	return false
}

func printRooms(session *client.ChatSession) {
	active, hasActive := session.ActiveRoom()
	for _, room := range session.Rooms() {
		marker := " "
		if hasActive && room.Id == active.Id {
			marker = "*"
		}
		fmt.Printf("%s [%d] %s (%s)\n", marker, room.Id, room.Name, room.Kind)
	}
}

func printHelp() {
	fmt.Print(`commands:
  /login <username> <password>
  /register <username> <password>
  /logout
  /rooms
  /users
  /join <chat-id>
  /create <name> [participant...]
  /private <username>
  /add <username>
  /clear <chat-id>
  /events
  /event <date> <title...>
  /quit
anything else is sent to the active chat
`)
}
