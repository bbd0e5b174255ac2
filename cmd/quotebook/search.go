package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/justyntemme/quotebook/internal/models"
	"github.com/justyntemme/quotebook/internal/search"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search for books, e.g. \"Tolkien: Hobbit\"",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "lang",
				Usage: "Restrict results to a two-letter language code, or \"any\" (remembered)",
			},
			&cli.IntFlag{
				Name:  "pages",
				Usage: "Number of result pages to load",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "add",
				Usage: "Add result number N to the library",
			},
		},
		Action: withEnv(runSearch),
	}
}

func runSearch(ctx context.Context, c *cli.Command, e *env) error {
	text := strings.Join(c.Args().Slice(), " ")

	lang, err := e.prefs.PreferredLanguage()
	if err != nil {
		return fmt.Errorf("reading language preference: %w", err)
	}
	if c.IsSet("lang") {
		lang = models.ParseLanguage(c.String("lang"))
		if err := e.prefs.SetPreferredLanguage(lang); err != nil {
			return err
		}
		if !lang.IsAny() {
			if err := e.recent.Add(lang.RestrictValue()); err != nil {
				return err
			}
		}
	}

	session := search.NewSession(e.searcher, search.Options{
		PageSize: e.cfg.PageSize,
		Debounce: e.cfg.Debounce.Duration,
		Language: lang,
		Logger:   e.log,
	})
	stop := context.AfterFunc(ctx, session.Cancel)
	defer stop()

	if !session.SetQuery(text) {
		return fmt.Errorf("query must be at least %d characters", search.MinQueryLength)
	}
	session.LoadFirstPage()
	session.Wait()

	for page := 1; page < int(c.Int("pages")) && session.Snapshot().HasMore; page++ {
		session.LoadMore()
		session.Wait()
	}

	state := session.Snapshot()
	if state.ErrorMessage != "" {
		fmt.Println(errorStyle.Render(state.ErrorMessage))
	}
	if len(state.Results) == 0 {
		if state.ErrorMessage == "" {
			fmt.Println(noDataStyle.Render("No books found"))
		}
		return nil
	}

	fmt.Println(metaStyle.Render(fmt.Sprintf("language %s", state.Language.DisplayCode())))
	for i, r := range state.Results {
		fmt.Println(renderSearchResult(i+1, r))
	}
	if state.HasMore {
		fmt.Println(metaStyle.Render("more results available (use --pages)"))
	}

	n := int(c.Int("add"))
	if n == 0 {
		return nil
	}
	if n < 1 || n > len(state.Results) {
		return fmt.Errorf("--add must be between 1 and %d", len(state.Results))
	}
	book, err := e.library.AddBook(models.BookFromResult(state.Results[n-1]))
	if err != nil {
		return fmt.Errorf("adding book: %w", err)
	}
	if book.CoverURL != nil {
		if e.covers.FetchImage(ctx, *book.CoverURL, book.ID) == nil {
			e.log.Warn("cover not cached", "book", book.ID)
		}
	}
	fmt.Println(successStyle.Render("Added " + book.Title + " (" + book.ID + ")"))
	return nil
}
