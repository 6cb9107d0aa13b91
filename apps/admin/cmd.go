package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/somakids/engage/core"
	"github.com/somakids/engage/storage/database"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf   *core.Config
	openDB func(*core.Config) (*sql.DB, error) // mockable
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  createdb                   - create the database and app user if missing")
	fmt.Println("  migrate                    - apply pending database migrations")
	fmt.Println("  addlesson -id ID [-title T] - register a lesson id for local development")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addLessonCmd := flag.NewFlagSet("addlesson", flag.ExitOnError)
	addLessonID := addLessonCmd.String("id", "", "The lesson id to register.")
	addLessonTitle := addLessonCmd.String("title", "", "An optional lesson title.")

	switch args[1] {
	case "createdb":
		return database.CreateIfNotExist(cli.conf)
	case "migrate":
		return cli.migrate()
	case "addlesson":
		if err := addLessonCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addLessonID == "" {
			addLessonCmd.Usage()
			return errHelp
		}
		return cli.addLesson(*addLessonID, *addLessonTitle)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) migrate() error {
	db, err := cli.openDB(cli.conf)
	if err != nil {
		return err
	}
	defer db.Close()

	return database.Migrate(db)
}

func (cli *commandLine) addLesson(id, title string) error {
	db, err := cli.openDB(cli.conf)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec(
		`INSERT INTO lessons (id, title) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		id, title,
	)
	return err
}
