// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"
)

// rootFlags are shared by every command
func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
			Sources: cli.EnvVars("TUNEBOX_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, json, yaml, csv or markdown",
			Value:   "text",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
	}
}

// listingFlags order a listing command
func listingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "Sort by creation_date, modification_date, name, play_count or artist",
		},
		&cli.BoolFlag{
			Name:    "reverse",
			Aliases: []string{"r"},
			Usage:   "Reverse the sort order",
		},
	}
}

func providerFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:    "provider",
		Aliases: []string{"p"},
		Usage:   usage,
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the configuration file and initialize the database",
		Action: r.Setup,
	}
}

func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations and print the schema version",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the most recent migration instead",
			},
		},
		Action: r.Migrate,
	}
}

// providersCommand manages the configured backends
func providersCommand(r *Runner) *cli.Command {
	credentials := []cli.Flag{
		&cli.StringFlag{
			Name:    "username",
			Aliases: []string{"u"},
			Usage:   "Account user name",
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "Account password",
			Sources: cli.EnvVars("TUNEBOX_PASSWORD"),
		},
		&cli.BoolFlag{
			Name:  "legacy-auth",
			Usage: "Send the Subsonic password instead of a salted token",
		},
	}

	return &cli.Command{
		Name:    "providers",
		Aliases: []string{"provider"},
		Usage:   "Manage media providers",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List providers and the active one",
				Action: r.ListProviders,
			},
			{
				Name:      "add",
				Usage:     "Add a Jellyfin or Subsonic server",
				ArgsUsage: "<type> <name> <endpoint>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "type"},
					&cli.StringArg{Name: "name"},
					&cli.StringArg{Name: "endpoint"},
				},
				Flags:  credentials,
				Action: r.AddProvider,
			},
			{
				Name:      "edit",
				Usage:     "Change a provider's name, endpoint or credentials",
				ArgsUsage: "<provider>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "provider"}},
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Display name"},
					&cli.StringFlag{Name: "endpoint", Usage: "Server URL"},
				}, credentials...),
				Action: r.EditProvider,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Remove a provider",
				ArgsUsage: "<provider>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "provider"}},
				Action:    r.RemoveProvider,
			},
			{
				Name:      "use",
				Usage:     "Make a provider the target of listings",
				ArgsUsage: "<provider>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "provider"}},
				Action:    r.UseProvider,
			},
		},
	}
}

func albumsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "albums",
		Usage:  "List albums of the active provider",
		Flags:  listingFlags(),
		Action: r.Albums,
	}
}

func artistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "artists",
		Usage:  "List artists of the active provider",
		Flags:  listingFlags(),
		Action: r.Artists,
	}
}

func genresCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "genres",
		Usage:  "List genres of the active provider",
		Flags:  listingFlags(),
		Action: r.Genres,
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "playlists",
		Usage:  "List playlists of the active provider",
		Flags:  listingFlags(),
		Action: r.Playlists,
	}
}

func activityCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "activity",
		Usage:  "Show the home page of the active provider",
		Action: r.Activity,
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the active provider",
		ArgsUsage: "<query>",
		Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
		Action:    r.Search,
	}
}

func showCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show an album, artist, audio, genre or playlist",
		ArgsUsage: "<uri>",
		Arguments: []cli.Argument{&cli.StringArg{Name: "uri"}},
		Action:    r.Show,
	}
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show diagnostics of a provider",
		Flags:  []cli.Flag{providerFlag("Provider to inspect, defaults to the active one")},
		Action: r.Status,
	}
}

// audioCommand handles operations on a single track
func audioCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "audio",
		Usage: "Audio operations",
		Commands: []*cli.Command{
			{
				Name:      "playlists",
				Usage:     "Show which playlists contain an audio",
				ArgsUsage: "<uri>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "uri"}},
				Action:    r.AudioPlaylists,
			},
			{
				Name:      "played",
				Usage:     "Record a playback",
				ArgsUsage: "<uri>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "uri"}},
				Action:    r.AudioPlayed,
			},
		},
	}
}

// playlistCommand edits, exports and imports playlists
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Playlist operations",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create an empty playlist",
				ArgsUsage: "<name>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags:     []cli.Flag{providerFlag("Provider to create it on, defaults to the active one")},
				Action:    r.CreatePlaylist,
			},
			{
				Name:      "rename",
				Usage:     "Rename a playlist",
				ArgsUsage: "<uri> <name>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "uri"},
					&cli.StringArg{Name: "name"},
				},
				Action: r.RenamePlaylist,
			},
			{
				Name:      "delete",
				Usage:     "Delete a playlist",
				ArgsUsage: "<uri>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "uri"}},
				Action:    r.DeletePlaylist,
			},
			{
				Name:      "add",
				Usage:     "Append an audio to a playlist",
				ArgsUsage: "<playlist> <audio>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "playlist"},
					&cli.StringArg{Name: "audio"},
				},
				Action: r.AddToPlaylist,
			},
			{
				Name:      "remove",
				Usage:     "Remove the first occurrence of an audio from a playlist",
				ArgsUsage: "<playlist> <audio>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "playlist"},
					&cli.StringArg{Name: "audio"},
				},
				Action: r.RemoveFromPlaylist,
			},
			{
				Name:      "export",
				Usage:     "Write a playlist as M3U",
				ArgsUsage: "<uri>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "uri"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path, defaults to stdout",
					},
				},
				Action: r.ExportPlaylist,
			},
			{
				Name:      "import",
				Usage:     "Create a playlist from an M3U file",
				ArgsUsage: "<file>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "file"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "name",
						Aliases: []string{"n"},
						Usage:   "Playlist name, defaults to the file's #PLAYLIST title",
					},
					providerFlag("Provider to import into, defaults to the active one"),
				},
				Action: r.ImportPlaylist,
			},
		},
	}
}

func scanCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Index the audio files of the local library",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "path",
				Usage: "Library folder, repeatable; defaults to library.paths",
			},
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Keep running and rescan when files change",
			},
		},
		Action: r.Scan,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host, defaults to server.host",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port, defaults to server.port",
			},
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Watch the library folders while serving",
			},
		},
		Action: r.Serve,
	}
}
