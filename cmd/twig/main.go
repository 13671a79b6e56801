// cmd/twig/main.go
package main

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"twig/internal/config"
	"twig/internal/errors"
	"twig/internal/history"
	"twig/internal/logging"
	"twig/internal/object"
	"twig/internal/repository"
	"twig/internal/workspace"
	"twig/shared/utils"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const dateFormat = "Mon Jan 2 15:04:05 2006 -0700"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "twig",
	Short: "Twig is a small local version control system",
	Long: `Twig snapshots a working directory into content-addressed commits, keeps
branches, merges them three ways and can undo its own operations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return errors.UserError("Please enter a command.", nil)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a repository in the current directory",
		Args:  operands(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return errors.StorageError("getting current directory", err)
			}

			cfg, err := loadConfig(dir)
			if err != nil {
				return err
			}
			logger, err := newLogger(dir, cfg)
			if err != nil {
				return err
			}
			defer logger.Close()

			r, err := repository.Init(dir, repository.Options{Config: cfg, Logger: logger.Logger})
			if err != nil {
				return err
			}
			defer r.Close()

			fmt.Println("Initialized empty twig repository in", dir)
			return nil
		},
	}

	var addCmd = &cobra.Command{
		Use:   "add <path>",
		Short: "Stage a file or directory for the next commit",
		Long:  `Stages the current content of a file, or of every visible file under a directory. Use '.' for the whole tree.`,
		Args:  operands(1),
		RunE: withRepo(func(r *repository.Repository, args []string) error {
			p, err := repoPath(r, args[0])
			if err != nil {
				return err
			}
			return r.Add(p)
		}),
	}

	var rmCmd = &cobra.Command{
		Use:   "rm <path>",
		Short: "Unstage a file or stage its removal",
		Args:  operands(1),
		RunE: withRepo(func(r *repository.Repository, args []string) error {
			p, err := repoPath(r, args[0])
			if err != nil {
				return err
			}
			return r.Rm(p)
		}),
	}

	var commitCmd = &cobra.Command{
		Use:   "commit <message>",
		Short: "Record the staged changes",
		Args:  operands(1),
		RunE: withRepo(func(r *repository.Repository, args []string) error {
			c, err := r.Commit(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("[%s %s] %s\n", mustBranch(r), utils.ShortID(c.ID()), c.Message)
			return nil
		}),
	}

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "Show the history of the current branch",
		Args:  operands(0),
		RunE: withRepo(func(r *repository.Repository, args []string) error {
			commits, err := r.Log()
			if err != nil {
				return err
			}
			for _, c := range commits {
				printCommit(c)
			}
			return nil
		}),
	}

	var globalLogCmd = &cobra.Command{
		Use:   "global-log",
		Short: "Show every commit ever made",
		Args:  operands(0),
		RunE: withRepo(func(r *repository.Repository, args []string) error {
			commits, err := r.GlobalLog()
			if err != nil {
				return err
			}
			for _, c := range commits {
				printCommit(c)
			}
			return nil
		}),
	}

	var findCmd = &cobra.Command{
		Use:   "find <message>",
		Short: "Print the ids of commits whose message contains the text",
		Args:  operands(1),
		RunE: withRepo(func(r *repository.Repository, args []string) error {
			ids, err := r.Find(args[0])
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		}),
	}

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show branches, staged files and working tree changes",
		Args:  operands(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			watching, _ := cmd.Flags().GetBool("watch")
			if watching {
				return watchStatus(cmd.Context())
			}
			return runWithRepo(printStatus)
		},
	}

	var checkoutCmd = &cobra.Command{
		Use:   "checkout <branch> | [<commit>] -- <path>",
		Short: "Switch branches or restore files",
		Long: `With a branch name, switches the working tree to that branch.
With "-- <path>", restores the path from the current commit.
With "<commit> -- <path>", restores the path from the given commit.`,
		Example: `  twig checkout feature
  twig checkout -- notes.txt
  twig checkout 3f2a9c -- src/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dash := cmd.ArgsLenAtDash()
			return runWithRepo(func(r *repository.Repository) error {
				switch {
				case dash == -1 && len(args) == 1:
					if err := r.CheckoutBranch(args[0]); err != nil {
						return err
					}
					fmt.Printf("Switched to branch '%s'\n", args[0])
					return nil
				case dash == 0 && len(args) == 1:
					p, err := repoPath(r, args[0])
					if err != nil {
						return err
					}
					return r.CheckoutPath(p)
				case dash == 1 && len(args) == 2:
					p, err := repoPath(r, args[1])
					if err != nil {
						return err
					}
					return r.CheckoutFile(args[0], p)
				default:
					return errors.UserError("Incorrect operands.", nil)
				}
			})
		},
	}

	var branchCmd = &cobra.Command{
		Use:   "branch <name>",
		Short: "Create a branch at the current commit",
		Args:  operands(1),
		RunE: withRepo(func(r *repository.Repository, args []string) error {
			return r.Branch(args[0])
		}),
	}

	var rmBranchCmd = &cobra.Command{
		Use:   "rm-branch <name>",
		Short: "Delete a branch pointer",
		Args:  operands(1),
		RunE: withRepo(func(r *repository.Repository, args []string) error {
			return r.RmBranch(args[0])
		}),
	}

	var resetCmd = &cobra.Command{
		Use:   "reset <commit>",
		Short: "Move the current branch to a commit and check it out",
		Args:  operands(1),
		RunE: withRepo(func(r *repository.Repository, args []string) error {
			c, err := r.Reset(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("HEAD is now at %s %s\n", utils.ShortID(c.ID()), c.Message)
			return nil
		}),
	}

	var mergeCmd = &cobra.Command{
		Use:   "merge <branch>",
		Short: "Merge a branch into the current branch",
		Args:  operands(1),
		RunE: withRepo(func(r *repository.Repository, args []string) error {
			res, err := r.Merge(args[0])
			if err != nil {
				return err
			}
			switch {
			case res.Kind == history.MergeNoNeed:
				fmt.Println("Given branch is an ancestor of the current branch.")
			case res.Kind == history.MergeFastForward:
				fmt.Println("Current branch fast-forwarded.")
			case len(res.Conflicts) > 0:
				yellow := color.New(color.FgYellow).SprintFunc()
				for _, p := range res.Conflicts {
					fmt.Printf("\t%s %s\n", yellow("C"), p)
				}
				fmt.Println("Encountered a merge conflict.")
			}
			return nil
		}),
	}

	var undoCmd = &cobra.Command{
		Use:   "undo",
		Short: "Reverse the most recent operation",
		Args:  operands(0),
		RunE: withRepo(func(r *repository.Repository, args []string) error {
			rec, err := r.Undo()
			if err != nil {
				return err
			}
			fmt.Printf("Undid %s\n", describe(rec))
			return nil
		}),
	}

	var diffCmd = &cobra.Command{
		Use:   "diff [paths...]",
		Short: "Show changes between the current commit and the working tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithRepo(func(r *repository.Repository) error {
				paths := make([]string, 0, len(args))
				for _, a := range args {
					p, err := repoPath(r, a)
					if err != nil {
						return err
					}
					paths = append(paths, p)
				}
				results, err := r.Diff(paths...)
				if err != nil {
					return err
				}
				for _, res := range results {
					printColoredDiff(res.Format())
				}
				return nil
			})
		},
	}

	statusCmd.Flags().BoolP("watch", "w", false, "Re-render status whenever the working tree changes")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(globalLogCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(rmBranchCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(diffCmd)
}

// operands rejects any argument count other than n.
func operands(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return errors.UserError("Incorrect operands.", nil)
		}
		return nil
	}
}

func withRepo(fn func(r *repository.Repository, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return runWithRepo(func(r *repository.Repository) error {
			return fn(r, args)
		})
	}
}

// runWithRepo opens the repository enclosing the current directory, runs fn
// and closes everything again.
func runWithRepo(fn func(r *repository.Repository) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return errors.StorageError("getting current directory", err)
	}
	root, err := workspace.FindRoot(cwd)
	if stderrors.Is(err, workspace.ErrRootNotFound) {
		return errors.UserError("Not in an initialized twig directory.", nil)
	}
	if err != nil {
		return errors.StorageError("locating repository", err)
	}

	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	logger, err := newLogger(root, cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	r, err := repository.Open(root, repository.Options{Config: cfg, Logger: logger.Logger})
	if err != nil {
		return err
	}
	defer r.Close()

	if err := fn(r); err != nil {
		logger.Debug("command failed", zap.Error(err))
		return err
	}
	return nil
}

// repoPath turns a path operand, given relative to the current directory,
// into the repository-relative form the engine works with.
func repoPath(r *repository.Repository, arg string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.StorageError("getting current directory", err)
	}
	return rootRelative(r.Root, cwd, arg)
}

// rootRelative resolves arg against cwd and expresses it relative to root
// with slashes. A trailing separator survives so an explicit directory stays
// marked as one.
func rootRelative(root, cwd, arg string) (string, error) {
	p := arg
	if !filepath.IsAbs(p) {
		p = filepath.Join(cwd, p)
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.UserError(fmt.Sprintf("Path %s is outside the repository.", arg), nil)
	}
	rel = filepath.ToSlash(rel)
	if rel != "." && (strings.HasSuffix(arg, "/") || strings.HasSuffix(arg, string(filepath.Separator))) {
		rel += "/"
	}
	return rel, nil
}

func loadConfig(root string) (*config.Config, error) {
	cfg, err := config.Load(repository.ConfigPath(root))
	if err != nil {
		return nil, errors.UserError("Invalid configuration.", err.Error())
	}
	return cfg, nil
}

// newLogger writes to the rotating log under the metadata directory and,
// with --verbose, to stderr.
func newLogger(root string, cfg *config.Config) (*logging.Logger, error) {
	file := cfg.Log.File
	if file != "" && !filepath.IsAbs(file) {
		file = filepath.Join(repository.MetaDir(root), file)
	}
	logger, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		File:       file,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Verbose:    verbose,
	})
	if err != nil {
		return nil, errors.UserError("Invalid configuration.", err.Error())
	}
	return logger, nil
}

func mustBranch(r *repository.Repository) string {
	b, err := r.CurrentBranch()
	if err != nil {
		return "HEAD"
	}
	return b
}

func printCommit(c *object.Commit) {
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Println("===")
	fmt.Println(yellow("commit " + c.ID()))
	if c.IsMerge() {
		fmt.Printf("Merge: %s %s\n", utils.ShortID(c.Parent1), utils.ShortID(c.Parent2))
	}
	fmt.Printf("Date: %s\n", c.Timestamp.Local().Format(dateFormat))
	fmt.Println(c.Message)
	fmt.Println()
}

func printStatus(r *repository.Repository) error {
	st, err := r.Status()
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Println("=== Branches ===")
	for _, b := range st.Branches {
		if b == st.Branch {
			fmt.Println(green("*" + b))
			continue
		}
		fmt.Println(b)
	}
	fmt.Println()

	fmt.Println("=== Staged Files ===")
	for _, p := range st.Staged {
		fmt.Println(green(p))
	}
	fmt.Println()

	fmt.Println("=== Removed Files ===")
	for _, p := range st.Removed {
		fmt.Println(red(p))
	}
	fmt.Println()

	fmt.Println("=== Modifications Not Staged For Commit ===")
	for _, c := range st.Modified {
		fmt.Println(red(fmt.Sprintf("%s (%s)", c.Path, c.State)))
	}
	fmt.Println()

	fmt.Println("=== Untracked Files ===")
	for _, p := range st.Untracked {
		fmt.Println(red(p))
	}
	fmt.Println()
	return nil
}

func describe(rec history.Record) string {
	var args []string
	for _, k := range []string{"commit", "path", "message", "name", "branch"} {
		if v, ok := rec.Params[k]; ok {
			if k == "commit" {
				v = utils.ShortID(v)
			}
			args = append(args, v)
		}
	}
	name := strings.ToLower(strings.ReplaceAll(string(rec.Type), "_", "-"))
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

func printColoredDiff(diff string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "diff "), strings.HasPrefix(line, "@@"):
			header.Println(line)
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Println(line)
		case strings.HasPrefix(line, "+"):
			added.Println(line)
		case strings.HasPrefix(line, "-"):
			removed.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

func printError(err error) {
	red := color.New(color.FgRed)

	var e *errors.Error
	if !stderrors.As(err, &e) {
		red.Fprintln(os.Stderr, err)
		return
	}
	red.Fprintln(os.Stderr, e.Message)
	switch d := e.Details.(type) {
	case []repository.UnsafeFile:
		for _, f := range d {
			fmt.Fprintf(os.Stderr, "\t%s\n", f)
		}
	case []string:
		for _, p := range d {
			fmt.Fprintf(os.Stderr, "\t%q\n", p)
		}
	case string:
		fmt.Fprintf(os.Stderr, "\t%s\n", d)
	}
	if e.Wrapped != nil {
		fmt.Fprintf(os.Stderr, "\t%v\n", e.Wrapped)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var e *errors.Error
		if !stderrors.As(err, &e) {
			// unknown commands and bad flags
			err = errors.UserError(err.Error(), nil)
		}
		printError(err)
		os.Exit(errors.ExitCode(err))
	}
}
