package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/justyntemme/quotebook/internal/library"
	"github.com/justyntemme/quotebook/internal/models"
)

func quoteFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "content", Usage: "Quote text"},
		&cli.StringFlag{Name: "page", Usage: "Page number"},
		&cli.StringFlag{Name: "chapter", Usage: "Chapter label"},
		&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
		&cli.StringFlag{Name: "note", Usage: "Personal note"},
	}
}

// applyQuoteFlags overwrites draft fields with the flags given on the command line
func applyQuoteFlags(c *cli.Command, d *library.QuoteDraft) {
	fields := map[string]*string{
		"content": &d.Content,
		"page":    &d.Page,
		"chapter": &d.Chapter,
		"tags":    &d.Tags,
		"note":    &d.Note,
	}
	for name, field := range fields {
		if c.IsSet(name) {
			*field = c.String(name)
		}
	}
}

func quotesCommand() *cli.Command {
	return &cli.Command{
		Name:  "quotes",
		Usage: "Add, edit and list quotes",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a quote to a book",
				ArgsUsage: "<book-id>",
				Flags:     quoteFlags(),
				Action: withEnv(func(ctx context.Context, c *cli.Command, e *env) error {
					if c.Args().Len() < 1 {
						return fmt.Errorf("%w: <book-id>", errMissingArgs)
					}
					var draft library.QuoteDraft
					applyQuoteFlags(c, &draft)
					q, err := draft.Build(nil)
					if err != nil {
						return err
					}
					if _, err := e.library.AddQuote(c.Args().First(), q); err != nil {
						return err
					}
					fmt.Println(successStyle.Render("Added quote " + q.ID))
					return nil
				}),
			},
			{
				Name:      "edit",
				Usage:     "Change fields of an existing quote",
				ArgsUsage: "<book-id> <quote-id>",
				Flags:     quoteFlags(),
				Action: withEnv(func(ctx context.Context, c *cli.Command, e *env) error {
					if c.Args().Len() < 2 {
						return fmt.Errorf("%w: <book-id> <quote-id>", errMissingArgs)
					}
					bookID, quoteID := c.Args().Get(0), c.Args().Get(1)
					book, err := e.library.Book(bookID)
					if err != nil {
						return err
					}
					idx := book.FindQuote(quoteID)
					if idx < 0 {
						return library.ErrQuoteNotFound
					}
					original := book.Quotes[idx]
					draft := library.DraftFromQuote(original)
					applyQuoteFlags(c, &draft)
					q, err := draft.Build(&original)
					if err != nil {
						return err
					}
					if err := e.library.UpdateQuote(bookID, q); err != nil {
						return err
					}
					fmt.Println(renderQuote(q))
					return nil
				}),
			},
			{
				Name:      "list",
				Usage:     "List a book's quotes",
				ArgsUsage: "<book-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "sort",
						Usage: "newest, oldest, page or page-desc",
						Value: "newest",
					},
				},
				Action: withEnv(func(ctx context.Context, c *cli.Command, e *env) error {
					if c.Args().Len() < 1 {
						return fmt.Errorf("%w: <book-id>", errMissingArgs)
					}
					order, err := library.ParseQuoteSort(c.String("sort"))
					if err != nil {
						return err
					}
					book, err := e.library.Book(c.Args().First())
					if err != nil {
						return err
					}
					quotes, err := e.library.Quotes(book.ID, order)
					if err != nil {
						return err
					}
					fmt.Println(renderBook(book))
					if len(quotes) == 0 {
						fmt.Println(noDataStyle.Render("No quotes yet"))
					}
					for _, q := range quotes {
						fmt.Println(renderQuote(q))
					}
					return nil
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a quote",
				ArgsUsage: "<book-id> <quote-id>",
				Action: withEnv(func(ctx context.Context, c *cli.Command, e *env) error {
					if c.Args().Len() < 2 {
						return fmt.Errorf("%w: <book-id> <quote-id>", errMissingArgs)
					}
					if err := e.library.DeleteQuote(c.Args().Get(0), c.Args().Get(1)); err != nil {
						return err
					}
					fmt.Println(successStyle.Render("Deleted"))
					return nil
				}),
			},
		},
	}
}

func tagsCommand() *cli.Command {
	return &cli.Command{
		Name:      "tags",
		Usage:     "List tags used across all quotes",
		ArgsUsage: "[prefix]",
		Action: withEnv(func(ctx context.Context, c *cli.Command, e *env) error {
			tags := e.library.TagSuggestions(c.Args().First())
			if len(tags) == 0 {
				fmt.Println(noDataStyle.Render("No tags"))
				return nil
			}
			fmt.Println(tagStyle.Render(strings.Join(tags, "\n")))
			return nil
		}),
	}
}

func langsCommand() *cli.Command {
	return &cli.Command{
		Name:  "langs",
		Usage: "Show or reset search language preferences",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Show the preferred and recently used languages",
				Action: withEnv(func(ctx context.Context, c *cli.Command, e *env) error {
					preferred, err := e.prefs.PreferredLanguage()
					if err != nil {
						return err
					}
					codes, err := e.recent.Load()
					if err != nil {
						return err
					}
					fmt.Println(titleStyle.Render("preferred: " + preferred.DisplayCode()))
					for _, code := range codes {
						fmt.Println("  " + models.LanguageCode(code).DisplayCode())
					}
					return nil
				}),
			},
			{
				Name:  "clear",
				Usage: "Forget recently used languages",
				Action: withEnv(func(ctx context.Context, c *cli.Command, e *env) error {
					if err := e.recent.Clear(); err != nil {
						return err
					}
					fmt.Println(successStyle.Render("Cleared"))
					return nil
				}),
			},
		},
	}
}
