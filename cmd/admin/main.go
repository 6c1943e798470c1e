package main

import (
	"campuswhisper/backend/internal/config"
	"campuswhisper/backend/internal/livequery"
	"campuswhisper/backend/internal/logger"
	"campuswhisper/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/redis/go-redis/v9"
)

const usage = `Usage: admin <command> [args]

Commands:
  reports                  list the moderation queue
  dismiss <report_id>      drop a report, keep the post
  delete-post <report_id>  delete the reported post with its votes, comments and reports
  shadow-ban <user_id>     hide the user's future posts
  unban <user_id>          lift a shadow ban`

var errUsage = errors.New("invalid usage")

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load(config.GetEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: "warn", Pretty: true, Output: os.Stderr})

	db, err := storage.OpenDB(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	// Redis тільки для сповіщень: відкриті live-сесії побачать зміни одразу.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	s := storage.NewStorageService(db, livequery.NewHub(rdb, log), log)

	if err := run(context.Background(), s, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Println(err)
			fmt.Println(usage)
			os.Exit(1)
		}
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("command failed")
	}
}

// run executes one admin command against s.
func run(ctx context.Context, s storage.Storage, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	command := args[0]
	arg := func(form string) (string, error) {
		if len(args) != 2 {
			return "", fmt.Errorf("%w: admin %s", errUsage, form)
		}
		return args[1], nil
	}

	switch command {
	case "reports":
		return listReports(ctx, s, out)
	case "dismiss":
		id, err := arg("dismiss <report_id>")
		if err != nil {
			return err
		}
		if err := s.DismissReport(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "Report %s has been dismissed.\n", id)
	case "delete-post":
		id, err := arg("delete-post <report_id>")
		if err != nil {
			return err
		}
		if err := s.DeleteReportedPost(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "Post of report %s has been deleted.\n", id)
	case "shadow-ban", "unban":
		id, err := arg(command + " <user_id>")
		if err != nil {
			return err
		}
		if err := s.SetShadowBan(ctx, id, command == "shadow-ban"); err != nil {
			return err
		}
		fmt.Fprintf(out, "User %s updated.\n", id)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
	return nil
}

func listReports(ctx context.Context, s storage.Storage, out io.Writer) error {
	reports, err := s.ListReports(ctx)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintln(out, "The queue is empty.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REPORT\tPOST\tCREATED\tREASON\tCONTENT")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.PostID, r.CreatedAt.Format("2006-01-02 15:04"), r.Reason, truncate(r.PostContent, 60))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
