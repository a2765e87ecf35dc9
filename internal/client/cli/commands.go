package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/filex"
	"github.com/spf13/cobra"
)

// annotationPublic marks commands that work without a session.
const annotationPublic = "public"

var errNotLoggedIn = errors.New("not logged in, use 'login' first")

func requireExactlyArgs(count int, message string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != count {
			return errors.New(message)
		}
		return nil
	}
}

func requireAtMostArgs(max int, message string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) > max {
			return errors.New(message)
		}
		return nil
	}
}

func public(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationPublic] = "true"
	return cmd
}

// exec runs one REPL line through a freshly built command tree, so flag
// values never leak between lines.
func (a *App) exec(ctx context.Context, args []string) error {
	root := a.newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *App) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fk",
		Short:         "FileKeeper interactive client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Annotations[annotationPublic] != "" {
				return nil
			}
			if !a.isLoggedIn() {
				return errNotLoggedIn
			}
			return nil
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetOut(a.out)
	cmd.SetErr(a.out)

	cmd.AddCommand(
		public(a.newPingCmd()),
		public(a.newLoginCmd()),
		a.newLogoutCmd(),
		a.newRegisterCmd(),
		a.newUploadCmd(),
		a.newGetCmd(),
		a.newDupCmd(),
		a.newVersionCmd(),
		a.newVersionsCmd(),
		a.newRmCmd(),
		a.newLsCmd(),
		a.newRenameCmd(),
		a.newQuotaCmd(),
		a.newAuditCmd(),
		a.newStatsCmd(),
		a.newMkspaceCmd(),
		a.newAddMemberCmd(),
		a.newRmMemberCmd(),
		a.newChownCmd(),
		a.newRmspaceCmd(),
		a.newSpacesCmd(),
		a.newTwoFactorCmd(),
	)
	return cmd
}

func (a *App) newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			if err := a.client.Ping(ctx); err != nil {
				a.setMode(ModeOffline)
				return err
			}
			a.setMode(ModeOnline)
			return a.writePlain("OK\n")
		},
	}
}

func (a *App) newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Authenticate and start a session",
		Args:  requireAtMostArgs(1, "usage: login [username]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			var userName string
			if len(args) == 1 {
				userName = args[0]
			} else {
				var err error
				if userName, err = getSimpleText(a.reader, "Enter username", a.out); err != nil {
					return err
				}
			}

			password, err := getPassword(a.out)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			if err := a.client.Login(ctx, userName, string(password)); err != nil {
				return err
			}

			a.userName = userName
			a.setMode(ModeOnline)
			return a.writePlain("Logged in as %s\n", userName)
		},
	}
}

func (a *App) newLogoutCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the session and revoke its refresh token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			err := a.client.Logout(ctx, all)
			a.userName = ""
			return err
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "revoke sessions on every device")
	return cmd
}

func (a *App) newRegisterCmd() *cobra.Command {
	var admin bool

	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create a user account (admin only)",
		Args:  requireExactlyArgs(1, "usage: register <username>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := getPassword(a.out)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			u, err := a.client.Register(ctx, args[0], string(password), admin)
			if err != nil {
				return err
			}
			return a.writePlain("Created user %s (%s)\n", u.Username, u.ID)
		},
	}

	cmd.Flags().BoolVar(&admin, "admin", false, "grant administrator rights")
	return cmd
}

func (a *App) newUploadCmd() *cobra.Command {
	var scope, name, mimeType string

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a local file as a new artifact",
		Args:  requireExactlyArgs(1, "usage: upload <path>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(args[0])
			}
			if mimeType == "" {
				mimeType = mime.TypeByExtension(filepath.Ext(name))
			}

			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			art, err := a.client.Upload(ctx, scope, name, mimeType, data)
			if err != nil {
				return err
			}
			return a.writeArtifact(art)
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "target scope (user/<id> or space/<id>), personal by default")
	cmd.Flags().StringVar(&name, "name", "", "artifact name, the file name by default")
	cmd.Flags().StringVar(&mimeType, "mime", "", "content type, guessed from the name by default")
	return cmd
}

func (a *App) newGetCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Download an artifact version to a local file",
		Args:  requireExactlyArgs(1, "usage: get <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			resp, err := a.client.Download(ctx, args[0])
			if err != nil {
				return err
			}

			path := output
			if path == "" {
				path = filex.AvailablePath(filepath.Base(resp.Artifact.Name))
			}
			n, err := filex.WriteAtomic("", path, bytes.NewReader(resp.Data))
			if err != nil {
				return err
			}
			return a.writePlain("Saved %d bytes to %s\n", n, path)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination path, a free name after the artifact by default")
	return cmd
}

func (a *App) newDupCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "dup <id>",
		Short: "Copy an artifact into a new file in the same scope",
		Args:  requireExactlyArgs(1, "usage: dup <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			art, err := a.client.Duplicate(ctx, args[0], name)
			if err != nil {
				return err
			}
			return a.writeArtifact(art)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "name of the copy")
	return cmd
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version <id> <path>",
		Short: "Upload a local file as the next version of an artifact",
		Args:  requireExactlyArgs(2, "usage: version <id> <path>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			art, err := a.client.CreateVersion(ctx, args[0], data)
			if err != nil {
				return err
			}
			return a.writeArtifact(art)
		},
	}
}

func (a *App) newVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <id>",
		Short: "List the retained versions of an artifact, newest first",
		Args:  requireExactlyArgs(1, "usage: versions <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			list, err := a.client.Versions(ctx, args[0])
			if err != nil {
				return err
			}
			return a.writeArtifactList(list)
		},
	}
}

func (a *App) newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an artifact with all its versions",
		Args:  requireExactlyArgs(1, "usage: rm <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			if err := a.client.Delete(ctx, args[0]); err != nil {
				return err
			}
			return a.writePlain("Deleted %s\n", args[0])
		},
	}
}

func (a *App) newLsCmd() *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List the latest version of every artifact in a scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			list, err := a.client.List(ctx, scope)
			if err != nil {
				return err
			}
			return a.writeArtifactList(list)
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "scope to list, personal by default")
	return cmd
}

func (a *App) newRenameCmd() *cobra.Command {
	var mimeType string

	cmd := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename an artifact version",
		Args:  requireExactlyArgs(2, "usage: rename <id> <name>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[1]
			var mt *string
			if cmd.Flags().Changed("mime") {
				mt = &mimeType
			}

			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			art, err := a.client.Update(ctx, args[0], &name, mt)
			if err != nil {
				return err
			}
			return a.writeArtifact(art)
		},
	}

	cmd.Flags().StringVar(&mimeType, "mime", "", "new content type")
	return cmd
}

func (a *App) newQuotaCmd() *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show usage and ceiling of a scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			q, err := a.client.Quota(ctx, scope)
			if err != nil {
				return err
			}
			return a.writePlain("%d / %d bytes used\n", q.UsedBytes, q.CeilingBytes)
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "scope to inspect, personal by default")
	return cmd
}

func (a *App) newAuditCmd() *cobra.Command {
	var target string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Page through the audit log (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			page, err := a.client.Audit(ctx, target, limit, offset)
			if err != nil {
				return err
			}
			return a.writeAuditPage(page)
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "show the timeline of one artifact or space")
	cmd.Flags().IntVar(&limit, "limit", common.DefaultPageLimit, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	return cmd
}

func (a *App) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count audit entries by action (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			counts, err := a.client.AuditCounts(ctx)
			if err != nil {
				return err
			}
			return a.writeCounts(counts)
		},
	}
}

func (a *App) newMkspaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkspace <name> <owner-id> <quota-bytes>",
		Short: "Create a shared space (admin only)",
		Args:  requireExactlyArgs(3, "usage: mkspace <name> <owner-id> <quota-bytes>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			quotaBytes, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("quota-bytes: %w", err)
			}

			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			sp, err := a.client.CreateSpace(ctx, args[0], args[1], quotaBytes)
			if err != nil {
				return err
			}
			return a.writePlain("Created space %s (%s)\n", sp.Name, sp.ID)
		},
	}
}

func (a *App) newAddMemberCmd() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "addmember <space-id> <user-id>",
		Short: "Add a member to a shared space",
		Args:  requireExactlyArgs(2, "usage: addmember <space-id> <user-id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			return a.client.AddMember(ctx, args[0], args[1], role)
		},
	}

	cmd.Flags().StringVar(&role, "role", "member", "role inside the space")
	return cmd
}

func (a *App) newRmMemberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rmmember <space-id> <user-id>",
		Short: "Remove a member from a shared space",
		Args:  requireExactlyArgs(2, "usage: rmmember <space-id> <user-id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			return a.client.RemoveMember(ctx, args[0], args[1])
		},
	}
}

func (a *App) newChownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chown <space-id> <user-id>",
		Short: "Transfer ownership of a shared space",
		Args:  requireExactlyArgs(2, "usage: chown <space-id> <user-id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			return a.client.TransferOwnership(ctx, args[0], args[1])
		},
	}
}

func (a *App) newRmspaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rmspace <space-id>",
		Short: "Delete a shared space with all its artifacts",
		Args:  requireExactlyArgs(1, "usage: rmspace <space-id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			if err := a.client.DeleteSpace(ctx, args[0]); err != nil {
				return err
			}
			return a.writePlain("Deleted space %s\n", args[0])
		},
	}
}

func (a *App) newSpacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spaces",
		Short: "List the shared spaces you belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			spaces, err := a.client.ListSpaces(ctx)
			if err != nil {
				return err
			}
			return a.writeSpaces(spaces)
		},
	}
}

func (a *App) newTwoFactorCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "2fa",
		Short: "Manage the stored two-factor seed",
	}
	cmd.PersistentFlags().StringVar(&userID, "user", "", "user ID, yourself by default")

	cmd.AddCommand(&cobra.Command{
		Use:   "set <seed>",
		Short: "Store a two-factor seed",
		Args:  requireExactlyArgs(1, "usage: 2fa set <seed>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			return a.client.SetTwoFactorSeed(ctx, userID, []byte(args[0]))
		},
	}, &cobra.Command{
		Use:   "get",
		Short: "Show the stored two-factor seed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			seed, err := a.client.GetTwoFactorSeed(ctx, userID)
			if err != nil {
				return err
			}
			return a.writePlain("%s\n", seed)
		},
	})
	return cmd
}
