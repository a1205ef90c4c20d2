package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/awnumar/memguard"

	"github.com/illarion/vaultkeep/cmd"
	"github.com/illarion/vaultkeep/internal/config"
	"github.com/illarion/vaultkeep/internal/prompt"
)

func main() {
	memguard.CatchInterrupt()
	defer memguard.Purge()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, args, err := config.Load(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage()
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	rest := args[1:]
	switch args[0] {
	case "setup":
		runSetup(ctx, cfg, rest)
	case "status":
		runStatus(ctx, cfg, rest)
	case "unlock":
		runUnlock(ctx, cfg, rest)
	case "passwd":
		runPasswd(ctx, cfg, rest)
	case "profile":
		runProfile(ctx, cfg, rest)
	case "get":
		runGet(ctx, cfg, rest)
	case "set":
		runSet(ctx, cfg, rest)
	case "rm":
		runRm(ctx, cfg, rest)
	case "ls":
		runLs(ctx, cfg, rest)
	case "export":
		runExport(ctx, cfg, rest)
	case "import":
		runImport(ctx, cfg, rest)
	case "diff":
		runDiff(ctx, cfg, rest)
	case "compact":
		runCompact(ctx, cfg, rest)
	case "keyring":
		runKeyring(ctx, cfg, rest)
	case "completion":
		runCompletion(rest)
	case "help", "-h", "--help":
		if len(rest) == 0 {
			printUsage()
			return
		}
		printCommandHelp(rest[0])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func parse(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// needArgs exits with usage when fewer than n positional arguments remain
func needArgs(fs *flag.FlagSet, n int, usage string) {
	if fs.NArg() < n {
		fmt.Fprintf(os.Stderr, "Usage: vaultkeep %s\n", usage)
		os.Exit(1)
	}
}

func runSetup(ctx context.Context, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	name := fs.String("name", "", "Display name of the first profile")
	parse(fs, args)

	cmd.Setup(ctx, cfg, *name)
}

func runStatus(ctx context.Context, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print status as JSON")
	parse(fs, args)

	cmd.Status(ctx, cfg, *asJSON)
}

func runUnlock(ctx context.Context, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("unlock", flag.ExitOnError)
	profile := fs.String("profile", "", "Profile to unlock (default: current)")
	parse(fs, args)

	cmd.Unlock(ctx, cfg, *profile)
}

func runPasswd(ctx context.Context, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	profile := fs.String("profile", "", "Profile whose password changes (default: current)")
	parse(fs, args)

	cmd.Passwd(ctx, cfg, *profile)
}

func runProfile(ctx context.Context, cfg config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: vaultkeep profile <list|create|select|update|delete>")
		os.Exit(1)
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "list", "ls":
		fs := flag.NewFlagSet("profile list", flag.ExitOnError)
		parse(fs, rest)
		cmd.ProfileList(ctx, cfg)
	case "create":
		fs := flag.NewFlagSet("profile create", flag.ExitOnError)
		id := fs.String("id", "", "Profile id (default: generated)")
		parse(fs, rest)
		needArgs(fs, 1, "profile create [--id <id>] <name>")
		cmd.ProfileCreate(ctx, cfg, fs.Arg(0), *id)
	case "select":
		fs := flag.NewFlagSet("profile select", flag.ExitOnError)
		parse(fs, rest)
		needArgs(fs, 1, "profile select <id>")
		cmd.ProfileSelect(ctx, cfg, fs.Arg(0))
	case "update":
		fs := flag.NewFlagSet("profile update", flag.ExitOnError)
		var name, note *string
		fs.Func("name", "New display name", func(v string) error { name = &v; return nil })
		fs.Func("note", "New note, empty to clear", func(v string) error { note = &v; return nil })
		parse(fs, rest)
		needArgs(fs, 1, "profile update [--name <name>] [--note <note>] <id>")
		cmd.ProfileUpdate(ctx, cfg, fs.Arg(0), name, note)
	case "delete", "rm":
		fs := flag.NewFlagSet("profile delete", flag.ExitOnError)
		force := fs.Bool("force", false, "Delete without confirmation")
		parse(fs, rest)
		needArgs(fs, 1, "profile delete [--force] <id>")
		cmd.ProfileDelete(ctx, cfg, fs.Arg(0), *force)
	default:
		fmt.Fprintf(os.Stderr, "Unknown profile subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runGet(ctx context.Context, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	query := fs.String("query", "", "jq expression applied to the value")
	raw := fs.Bool("raw", false, "Print strings without JSON quotes")
	parse(fs, args)
	needArgs(fs, 1, "get [--query <expr>] [--raw] <key>")

	cmd.Get(ctx, cfg, fs.Arg(0), *query, *raw)
}

func runSet(ctx context.Context, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	asString := fs.Bool("string", false, "Store the value as a JSON string")
	parse(fs, args)
	needArgs(fs, 2, "set [--string] <key> <value|->")

	cmd.Set(ctx, cfg, fs.Arg(0), fs.Arg(1), *asString)
}

func runRm(ctx context.Context, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	parse(fs, args)
	needArgs(fs, 1, "rm <key> [key...]")

	cmd.Remove(ctx, cfg, fs.Args())
}

func runLs(ctx context.Context, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	parse(fs, args)

	cmd.Ls(ctx, cfg)
}

func runExport(ctx context.Context, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	output := fs.String("o", "", "Output file (default: <project>.json)")
	force := fs.Bool("force", false, "Overwrite an existing file")
	parse(fs, args)
	needArgs(fs, 1, "export [-o <file>] [--force] <project-id>")

	cmd.Export(ctx, cfg, fs.Arg(0), *output, *force)
}

func runImport(ctx context.Context, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	overwrite := fs.Bool("overwrite", false, "Replace existing project and accounts")
	parse(fs, args)
	needArgs(fs, 1, "import [--overwrite] <file>")

	cmd.Import(ctx, cfg, fs.Arg(0), *overwrite)
}

func runDiff(ctx context.Context, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	parse(fs, args)
	needArgs(fs, 1, "diff <file>")

	cmd.Diff(ctx, cfg, fs.Arg(0))
}

func runCompact(ctx context.Context, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	parse(fs, args)

	cmd.Compact(ctx, cfg)
}

func runKeyring(ctx context.Context, cfg config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: vaultkeep keyring <save|delete|status>")
		os.Exit(1)
	}
	switch args[0] {
	case "save":
		cmd.KeyringSave(ctx, cfg)
	case "delete":
		cmd.KeyringDelete(ctx, cfg)
	case "status":
		cmd.KeyringStatus(ctx, cfg)
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func runCompletion(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: vaultkeep completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("vaultkeep - Password-protected local store for accounts and projects")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vaultkeep [--db <path>] [--backend bolt|libsql] [--log-level <level>] [--log-format console|json] <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  setup       Protect the current profile with a password")
	fmt.Println("  status      Show profiles and vault state")
	fmt.Println("  unlock      Verify a password and seal leftover plaintext")
	fmt.Println("  passwd      Change the password of a profile")
	fmt.Println("  profile     List, create, select, update or delete profiles")
	fmt.Println("  get         Print a record")
	fmt.Println("  set         Store a record")
	fmt.Println("  rm          Delete records")
	fmt.Println("  ls          List record keys of the current profile")
	fmt.Println("  export      Write a project and its accounts to a bundle file")
	fmt.Println("  import      Load a bundle file")
	fmt.Println("  diff        Compare a bundle file with the vault")
	fmt.Println("  compact     Compact the database to reclaim disk space")
	fmt.Println("  keyring     Manage password in OS keyring")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Printf("  %-24s Database path\n", config.EnvDB)
	fmt.Printf("  %-24s Storage backend\n", config.EnvBackend)
	fmt.Printf("  %-24s Log level\n", config.EnvLogLevel)
	fmt.Printf("  %-24s Log format\n", config.EnvLogFormat)
	fmt.Printf("  %-24s Password (non-interactive use)\n", prompt.PasswordEnv)
	fmt.Printf("  %-24s New password for passwd\n", cmd.EnvNewPassword)
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  vaultkeep setup --name Work          # Create a vault")
	fmt.Println("  vaultkeep set accounts '[]'          # Store a record")
	fmt.Println("  vaultkeep get --query '.[].id' accounts")
	fmt.Println("  vaultkeep status                     # Check vault status")
	fmt.Println()
	fmt.Println("Use 'vaultkeep help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "setup":
		fmt.Println("vaultkeep setup [--name <name>]")
		fmt.Println()
		fmt.Println("Creates a password-protected vault for the current profile.")
		fmt.Println("When no profile exists yet, a 'default' profile is registered.")
		fmt.Println("Records stored before the first setup are moved into the profile")
		fmt.Println("and encrypted. The password is not stored anywhere unless you")
		fmt.Println("save it to the keyring.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  vaultkeep setup")
		fmt.Println("  vaultkeep setup --name Personal")
	case "status":
		fmt.Println("vaultkeep status [--json]")
		fmt.Println()
		fmt.Println("Shows the current profile, whether it has a vault, its KDF")
		fmt.Println("parameters and record statistics.")
		fmt.Println()
		fmt.Println("Does not require a password.")
	case "unlock":
		fmt.Println("vaultkeep unlock [--profile <id>]")
		fmt.Println()
		fmt.Println("Verifies the password of a profile and makes it current.")
		fmt.Println("Any plaintext records left in the profile are encrypted.")
		fmt.Println("Offers to store the password in the OS keyring.")
	case "passwd":
		fmt.Println("vaultkeep passwd [--profile <id>]")
		fmt.Println()
		fmt.Println("Changes the password of a profile.")
		fmt.Println("Requires both the current and new passwords.")
		fmt.Println("Re-encrypts every record with the new key. An interrupted")
		fmt.Println("change is resumed by running passwd again with the same new password.")
	case "profile":
		fmt.Println("vaultkeep profile list")
		fmt.Println("vaultkeep profile create [--id <id>] <name>")
		fmt.Println("vaultkeep profile select <id>")
		fmt.Println("vaultkeep profile update [--name <name>] [--note <note>] <id>")
		fmt.Println("vaultkeep profile delete [--force] <id>")
		fmt.Println()
		fmt.Println("Profiles keep independent records and passwords in one database.")
		fmt.Println("Deleting a profile removes all of its records and requires its password.")
	case "get":
		fmt.Println("vaultkeep get [--query <expr>] [--raw] <key>")
		fmt.Println()
		fmt.Println("Prints a record of the current profile as JSON.")
		fmt.Println("--query applies a jq expression to the value.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  vaultkeep get accounts")
		fmt.Println("  vaultkeep get --query '.[] | select(.site == \"github.com\")' accounts")
	case "set":
		fmt.Println("vaultkeep set [--string] <key> <value|->")
		fmt.Println()
		fmt.Println("Stores a JSON value under key. Use - to read the value from stdin.")
		fmt.Println("--string stores the value as a JSON string instead of parsing it.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  vaultkeep set projects '[{\"id\":\"p1\",\"name\":\"Site\"}]'")
		fmt.Println("  vaultkeep set --string token s3cr3t")
		fmt.Println("  cat accounts.json | vaultkeep set accounts -")
	case "rm":
		fmt.Println("vaultkeep rm <key> [key...]")
		fmt.Println()
		fmt.Println("Deletes records from the current profile.")
	case "ls":
		fmt.Println("vaultkeep ls")
		fmt.Println()
		fmt.Println("Lists record keys of the current profile.")
		fmt.Println("Does not require a password.")
	case "export":
		fmt.Println("vaultkeep export [-o <file>] [--force] <project-id>")
		fmt.Println()
		fmt.Println("Writes a project and its accounts to a plaintext JSON bundle")
		fmt.Println("in the current directory.")
	case "import":
		fmt.Println("vaultkeep import [--overwrite] <file>")
		fmt.Println()
		fmt.Println("Loads a bundle into the current profile. Existing projects and")
		fmt.Println("accounts are only replaced with --overwrite.")
	case "diff":
		fmt.Println("vaultkeep diff <file>")
		fmt.Println()
		fmt.Println("Shows what importing a bundle would change.")
	case "compact":
		fmt.Println("vaultkeep compact")
		fmt.Println()
		fmt.Println("Compacts the database to reclaim unused disk space.")
		fmt.Println("This is done automatically after 'passwd'.")
		fmt.Println()
		fmt.Println("Does not require a password.")
	case "keyring":
		fmt.Println("vaultkeep keyring <save|delete|status>")
		fmt.Println()
		fmt.Println("Manages the current profile's password in the OS keyring.")
	case "completion":
		fmt.Println("vaultkeep completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs shell completion script for the specified shell.")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(vaultkeep completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(vaultkeep completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  vaultkeep completion fish | source")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
