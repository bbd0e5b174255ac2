package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/justyntemme/quotebook/internal/library"
	"github.com/justyntemme/quotebook/internal/models"
)

var errMissingArgs = errors.New("missing arguments")

func booksCommand() *cli.Command {
	return &cli.Command{
		Name:  "books",
		Usage: "List and manage books in the library",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List books",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "sort",
						Usage: "added, title or author",
						Value: "added",
					},
					&cli.StringFlag{
						Name:  "filter",
						Usage: "Only books whose title or authors contain this text",
					},
				},
				Action: withEnv(func(ctx context.Context, c *cli.Command, e *env) error {
					order, err := library.ParseBookSort(c.String("sort"))
					if err != nil {
						return err
					}
					books := e.library.Books(library.ListOptions{Sort: order, Filter: c.String("filter")})
					if len(books) == 0 {
						fmt.Println(noDataStyle.Render("No books"))
						return nil
					}
					for _, b := range books {
						fmt.Println(renderBook(b))
					}
					return nil
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a book and its quotes",
				ArgsUsage: "<book-id>",
				Action: withEnv(func(ctx context.Context, c *cli.Command, e *env) error {
					if c.Args().Len() < 1 {
						return fmt.Errorf("%w: <book-id>", errMissingArgs)
					}
					if err := e.library.DeleteBook(c.Args().First()); err != nil {
						return err
					}
					fmt.Println(successStyle.Render("Deleted"))
					return nil
				}),
			},
		},
	}
}

func coverCommand() *cli.Command {
	return &cli.Command{
		Name:      "cover",
		Usage:     "Cache a book's cover and print where it is stored",
		ArgsUsage: "<book-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "set",
				Usage: "Use this image file as the book's cover",
			},
		},
		Action: withEnv(func(ctx context.Context, c *cli.Command, e *env) error {
			if c.Args().Len() < 1 {
				return fmt.Errorf("%w: <book-id>", errMissingArgs)
			}
			book, err := e.library.Book(c.Args().First())
			if err != nil {
				return err
			}

			if path := c.String("set"); path != "" {
				return setCover(e, book, path)
			}

			key, local := book.CoverKey()
			switch {
			case local:
				if e.covers.LocalCover(key) == nil {
					return fmt.Errorf("local cover %s is missing", key)
				}
				fmt.Println(e.covers.LocalCoverPath(key))
			case book.CoverURL != nil:
				if e.covers.FetchImage(ctx, *book.CoverURL, key) == nil {
					fmt.Println(noDataStyle.Render("Cover unavailable"))
					return nil
				}
				fmt.Println(e.covers.DiskPath(key))
			default:
				fmt.Println(noDataStyle.Render("Book has no cover"))
			}
			return nil
		}),
	}
}

func setCover(e *env, book models.Book, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	filename, err := e.covers.SaveLocalCover(img, book.ID)
	if err != nil {
		return err
	}
	book.LocalCoverFilename = models.StringPtr(filename)
	if err := e.library.UpdateBook(book); err != nil {
		return err
	}
	fmt.Println(e.covers.LocalCoverPath(filename))
	return nil
}
