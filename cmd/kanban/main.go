// Command kanban is the client CLI (spec §6): a single command, no
// flags, that connects to a kanbandserver, lets the user post/list
// nodes from a line-oriented prompt, and persists its connection
// profile on clean exit. A full terminal UI is out of scope (spec's
// client is an external collaborator reading the same wire protocol);
// this is the minimal working consumer exercising internal/link and
// internal/clientcache end to end.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adred-codev/kanband/internal/clientconfig"
	"github.com/adred-codev/kanband/internal/clientcache"
	"github.com/adred-codev/kanband/internal/codec"
	"github.com/adred-codev/kanband/internal/identity"
	"github.com/adred-codev/kanband/internal/idspace"
	"github.com/adred-codev/kanband/internal/link"
	"github.com/adred-codev/kanband/internal/logging"
	"github.com/rs/zerolog"
)

func main() {
	os.Exit(run())
}

func run() int {
	logFile, err := openLogFile()
	if err != nil {
		fmt.Fprintln(os.Stderr, "kanban: failed to open log file:", err)
		return 1
	}
	defer logFile.Close()
	logger := logging.New(logging.Options{Level: "info", Format: logging.FormatJSON, Service: "kanban"})
	logger = logger.Output(logFile)

	cfg, err := clientconfig.Load()
	if err != nil {
		logger.Error().Err(err).Msg("failed to load client config")
		return 1
	}

	l := link.New(cfg.Endpoint, logger)
	go l.Run()

	cache := clientcache.New()
	go consumeResponses(l, cache, logger)

	fmt.Printf("kanban connected as %s to %s (commands: post <title> <content>, list, quit)\n", cfg.Username, cfg.Endpoint)
	runPrompt(l, cfg)

	l.Send(link.Shutdown())
	if err := cfg.Save(); err != nil {
		logger.Error().Err(err).Msg("failed to save client config on exit")
	}
	return 0
}

func openLogFile() (*os.File, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}
	dir = filepath.Join(dir, "kanban")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, "kanban.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
}

func runPrompt(l *link.Link, cfg clientconfig.Config) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		switch fields[0] {
		case "quit", "exit":
			return
		case "list":
			l.Send(link.Post(codec.Action{Kind: codec.ActionList, ListTarget: codec.ListTarget{Kind: codec.ListTargetRoot}}))
		case "post":
			if len(fields) < 3 {
				fmt.Println("usage: post <title> <content>")
				continue
			}
			id, err := idspace.New(nil)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			n := codec.Action{
				Kind: codec.ActionPost,
			}
			n.Node.ID = id
			n.Node.Title = fields[1]
			n.Node.Content = fields[2]
			n.Node.Author = identity.New(cfg.Username, cfg.Password)
			l.Send(link.Post(n))
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func consumeResponses(l *link.Link, cache *clientcache.Cache, logger zerolog.Logger) {
	for resp := range l.Responses() {
		switch resp.Kind {
		case codec.ResponsePost, codec.ResponseUpdate:
			cache.Put(resp.Node)
			fmt.Printf("[%s] %s\n", time.Now().Format(time.Kitchen), resp.Node.Title)
		case codec.ResponseDelete:
			cache.Remove(resp.Node.ID)
		case codec.ResponseList:
			for _, n := range resp.List {
				cache.Put(n)
				fmt.Printf("- %s\n", n.Title)
			}
		case codec.ResponseErr:
			logger.Warn().Str("code", resp.Err.Error()).Msg("server returned error response")
			fmt.Println("error:", resp.Err)
		}
	}
}
