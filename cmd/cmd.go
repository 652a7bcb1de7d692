// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// pipelineFlags override the configured and saved run settings.
func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "mode",
			Aliases: []string{"m"},
			Usage:   "Pipeline mode: look-closer or dive-deeper",
		},
		&cli.StringFlag{
			Name:    "source",
			Aliases: []string{"s"},
			Usage:   "Source playlist ID (empty or 0 for liked songs)",
		},
		&cli.IntFlag{
			Name:    "threshold",
			Aliases: []string{"t"},
			Usage:   "Minimum number of source tracks an artist needs",
		},
		&cli.IntFlag{
			Name:  "tracks",
			Usage: "Top tracks to take per artist",
		},
		&cli.IntFlag{
			Name:  "related",
			Usage: "Related artists to take per seed artist (dive-deeper)",
		},
		&cli.StringFlag{
			Name:    "name",
			Aliases: []string{"n"},
			Usage:   "Base name of the created playlists",
		},
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: text, csv, markdown or json",
		Value:   "text",
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file, initialize the database and run migrations",
		Action: r.Setup,
	}
}

// authCommand handles the Spotify login
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authenticate with Spotify using OAuth2",
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored Spotify tokens",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show the logged in Spotify user",
				Action: r.AuthStatus,
			},
		},
	}
}

// libraryCommand inspects the sources a run can start from
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Inspect liked songs and playlists",
		Commands: []*cli.Command{
			{
				Name:  "artists",
				Usage: "Rank the artists of a source by how many tracks they have in it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "Source playlist ID (empty or 0 for liked songs)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of artists to print (0 for all)",
						Value: 25,
					},
					formatFlag(),
				},
				Action: r.LibraryArtists,
			},
			{
				Name:   "playlists",
				Usage:  "List your playlists",
				Flags:  []cli.Flag{formatFlag()},
				Action: r.LibraryPlaylists,
			},
		},
	}
}

func estimateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "estimate",
		Usage:  "Show the seed artists and an upper bound of the tracks a run would add",
		Flags:  append(pipelineFlags(), formatFlag()),
		Action: r.Estimate,
	}
}

func runCommand(r *Runner) *cli.Command {
	flags := append(pipelineFlags(),
		&cli.BoolFlag{
			Name:  "save-prefs",
			Usage: "Remember these settings for later runs",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Directory to write a run report to",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output the run result as JSON",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Do not print progress",
		},
	)

	return &cli.Command{
		Name:   "run",
		Usage:  "Build new playlists from the artists in a source",
		Flags:  flags,
		Action: r.Run,
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Pick a source and run the pipeline interactively",
		Flags:  pipelineFlags(),
		Action: r.TUI,
	}
}

// prefsCommand manages the saved run settings
func prefsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "prefs",
		Aliases: []string{"preferences"},
		Usage:   "Saved run settings",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the saved settings",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.PrefsShow,
			},
			{
				Name:  "set",
				Usage: "Save one setting",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key"},
					&cli.StringArg{Name: "value"},
				},
				Action: r.PrefsSet,
			},
			{
				Name:   "reset",
				Usage:  "Forget every saved setting",
				Action: r.PrefsReset,
			},
		},
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List previous runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to list",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only list runs with this status",
			},
			&cli.BoolFlag{
				Name:  "mark-interrupted",
				Usage: "Mark runs left running by a killed process as failed",
			},
			formatFlag(),
		},
		Action: r.History,
	}
}
