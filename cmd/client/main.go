package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"lumos-backend/internal/client"
	"lumos-backend/internal/models"
	"lumos-backend/internal/reconciler"
)

func main() {
	godotenv.Load()

	serverURL := os.Getenv("LUMOS_SERVER_URL")
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	token := os.Getenv("LUMOS_TOKEN")
	if token == "" {
		log.Fatal("LUMOS_TOKEN is required")
	}
	revealDelay := 150 * time.Millisecond
	if ms, err := strconv.Atoi(os.Getenv("REVEAL_DELAY_MS")); err == nil && ms > 0 {
		revealDelay = time.Duration(ms) * time.Millisecond
	}

	api := client.New(serverURL, token)
	rec := reconciler.New(api, revealDelay, nil, func(msg string) {
		fmt.Printf("! %s\n", msg)
	})

	ctx := context.Background()
	if err := rec.Refresh(ctx); err != nil {
		log.Fatalf("Failed to load chats: %v", err)
	}
	printChats(rec)
	printMessages(rec.VisibleMessages())

	fmt.Println(`Type a prompt, or /new /list /select <n> /rename <name> /delete /quit`)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "/quit":
			return

		case line == "/new":
			if _, err := rec.NewChat(ctx); err == nil {
				fmt.Println("Started a new chat.")
			}

		case line == "/list":
			printChats(rec)

		case strings.HasPrefix(line, "/select "):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "/select ")))
			chats := rec.Chats()
			if err != nil || n < 1 || n > len(chats) {
				fmt.Println("! Pick a chat number from /list")
				continue
			}
			rec.Select(chats[n-1].ID)
			printMessages(rec.VisibleMessages())

		case strings.HasPrefix(line, "/rename "):
			rec.Rename(ctx, strings.TrimPrefix(line, "/rename "))

		case line == "/delete":
			if err := rec.Delete(ctx); err == nil {
				fmt.Println("Chat deleted.")
			}

		case line == "":
			continue

		default:
			if err := rec.Submit(ctx, line); err != nil {
				// The failed prompt stays on the line above; resend at will.
				continue
			}
			watchReveal(rec)
		}
	}
}

// watchReveal redraws the assistant's line while the token reveal runs.
func watchReveal(rec *reconciler.Reconciler) {
	for {
		msgs := rec.VisibleMessages()
		if len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			if last.Role == models.RoleAssistant {
				fmt.Printf("\r\033[Kassistant: %s", last.Content)
			}
		}
		if !rec.Busy() {
			fmt.Println()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func printChats(rec *reconciler.Reconciler) {
	chats := rec.Chats()
	if len(chats) == 0 {
		fmt.Println("No chats yet.")
		return
	}
	selected, _ := rec.SelectedID()
	for i, c := range chats {
		marker := " "
		if c.ID == selected {
			marker = "*"
		}
		fmt.Printf("%s %d. %s (%d messages)\n", marker, i+1, c.Name, len(c.Messages))
	}
}

func printMessages(msgs []models.Message) {
	for _, m := range msgs {
		fmt.Printf("%s: %s\n", m.Role, m.Content)
	}
}
