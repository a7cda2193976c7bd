// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
			Sources: cli.EnvVars("SPOTS_CONFIG"),
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Log at debug level",
		},
	}
}

func prettyFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Print JSON instead of a table",
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "User id (default: the signed in user)",
	}
}

// setupCommand handles setup operations for configuration and the record store.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Create the record store and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// migrateCommand manages the record store schema.
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Schema migrations",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply migrations up to a version",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "to",
						Usage: "Target schema version (default: latest)",
					},
				},
				Action: r.MigrateUp,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recent migration",
				Action: r.MigrateRollback,
			},
			{
				Name:   "status",
				Usage:  "Show applied migrations and store size",
				Flags:  []cli.Flag{prettyFlag()},
				Action: r.MigrateStatus,
			},
		},
	}
}

// userCommand manages accounts.
func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Account management",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create an account",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "username",
						Usage:    "Account name",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "password",
						Usage:   "Account password",
						Sources: cli.EnvVars("SPOTS_PASSWORD"),
					},
				},
				Action: r.UserAdd,
			},
		},
	}
}

// authCommand handles the persisted session.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Sign in and out",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in; the session persists across runs",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "username",
						Usage:    "Account name",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "password",
						Usage:   "Account password",
						Sources: cli.EnvVars("SPOTS_PASSWORD"),
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "End the current session",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show the signed in user and store state",
				Flags:  []cli.Flag{prettyFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

// playlistCommand handles playlist operations.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Playlist operations",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a playlist owned by the signed in user",
				ArgsUsage: "<name> [track-id...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "image",
						Usage: "Cover image URL or file",
					},
				},
				Action: r.PlaylistCreate,
			},
			{
				Name:   "list",
				Usage:  "List playlists",
				Flags:  []cli.Flag{userFlag(), prettyFlag()},
				Action: r.PlaylistList,
			},
			{
				Name:      "show",
				Usage:     "Show a playlist and its tracks",
				ArgsUsage: "<playlist-id>",
				Flags:     []cli.Flag{prettyFlag()},
				Action:    r.PlaylistShow,
			},
			{
				Name:      "rename",
				Usage:     "Rename a playlist",
				ArgsUsage: "<playlist-id> <name>",
				Action:    r.PlaylistRename,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Delete a playlist",
				ArgsUsage: "<playlist-id>",
				Action:    r.PlaylistRemove,
			},
			{
				Name:      "add",
				Usage:     "Append tracks to a playlist",
				ArgsUsage: "<playlist-id> <track-id...>",
				Action:    r.PlaylistAdd,
			},
			{
				Name:      "drop",
				Usage:     "Remove tracks from a playlist",
				ArgsUsage: "<playlist-id> <track-id...>",
				Action:    r.PlaylistDrop,
			},
			{
				Name:      "follow",
				Usage:     "Toggle following a playlist",
				ArgsUsage: "<playlist-id>",
				Flags:     []cli.Flag{userFlag()},
				Action:    r.PlaylistFollow,
			},
			{
				Name:      "pin",
				Usage:     "Toggle pinning a playlist",
				ArgsUsage: "<playlist-id>",
				Flags:     []cli.Flag{userFlag()},
				Action:    r.PlaylistPin,
			},
			{
				Name:   "recent",
				Usage:  "List recently played playlists",
				Flags:  []cli.Flag{userFlag(), prettyFlag()},
				Action: r.PlaylistRecent,
			},
			{
				Name:   "pinned",
				Usage:  "List pinned playlists",
				Flags:  []cli.Flag{userFlag(), prettyFlag()},
				Action: r.PlaylistPinned,
			},
			{
				Name:      "play",
				Usage:     "Record that a playlist was played now",
				ArgsUsage: "<playlist-id>",
				Action:    r.PlaylistPlay,
			},
		},
	}
}

// trackCommand handles track operations.
func trackCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "track",
		Usage: "Track operations",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a track to the library",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "src", Usage: "Audio source path or URL", Required: true},
					&cli.StringFlag{Name: "title", Usage: "Track title"},
					&cli.StringFlag{Name: "artist", Usage: "Artist name"},
					&cli.StringFlag{Name: "album", Usage: "Album name"},
					&cli.StringFlag{Name: "image", Usage: "Artwork URL or file"},
				},
				Action: r.TrackAdd,
			},
			{
				Name:   "list",
				Usage:  "List every track in the library",
				Flags:  []cli.Flag{prettyFlag()},
				Action: r.TrackList,
			},
			{
				Name:      "show",
				Usage:     "Show a track",
				ArgsUsage: "<track-id>",
				Action:    r.TrackShow,
			},
			{
				Name:      "edit",
				Usage:     "Change a track's source or metadata",
				ArgsUsage: "<track-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "src", Usage: "Audio source path or URL"},
					&cli.StringFlag{Name: "title", Usage: "Track title"},
					&cli.StringFlag{Name: "artist", Usage: "Artist name"},
					&cli.StringFlag{Name: "album", Usage: "Album name"},
					&cli.StringFlag{Name: "image", Usage: "Artwork URL or file"},
				},
				Action: r.TrackEdit,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Delete a track",
				ArgsUsage: "<track-id>",
				Action:    r.TrackRemove,
			},
		},
	}
}

// importCommand loads tracks from a manifest file.
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import tracks from a JSON manifest",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "manifest",
				Aliases:  []string{"m"},
				Usage:    "Manifest file holding a JSON array of tracks",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Playlist to append imported tracks to (default: import.playlist)",
			},
			&cli.Float64Flag{
				Name:  "rate",
				Usage: "Tracks added per second (default: import.rate_limit)",
			},
		},
		Action: r.Import,
	}
}

// exportCommand writes playlists to files.
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export playlists to json, csv, markdown or txt",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "id",
				Usage: "Playlist to export, repeatable (default: all playlists)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Export format: json, csv, markdown, txt",
				Value:   "json",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (default: spots_export_{epoch})",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent file writers",
				Value: 5,
			},
		},
		Action: r.Export,
	}
}

// serveCommand runs the invoke API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the invoke API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default: server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (default: server.port)",
			},
		},
		Action: r.Serve,
	}
}
