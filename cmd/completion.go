package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_vaultkeep() {
    local cur prev words cword
    _init_completion || return

    local commands="setup status unlock passwd profile get set rm ls export import diff compact keyring help completion"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    local cmd="${words[1]}"
    case "$cmd" in
        get|set|rm)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "--query --raw --string" -- "$cur"))
            else
                local keys
                keys=$(vaultkeep ls 2>/dev/null | sed -n 's/^  //p')
                COMPREPLY=($(compgen -W "$keys" -- "$cur"))
            fi
            ;;
        profile)
            if [[ $cword -eq 2 ]]; then
                COMPREPLY=($(compgen -W "list create select update delete" -- "$cur"))
            else
                local ids
                ids=$(vaultkeep profile list 2>/dev/null | awk '{print ($1 == "*") ? $2 : $1}')
                COMPREPLY=($(compgen -W "$ids" -- "$cur"))
            fi
            ;;
        import|diff)
            _filedir json
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save delete status" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _vaultkeep vaultkeep
`

const zshCompletion = `#compdef vaultkeep

_vaultkeep() {
    local -a commands
    commands=(
        'setup:Create a password-protected vault for the current profile'
        'status:Show profile and vault status'
        'unlock:Verify the password of a profile'
        'passwd:Change the password of a profile'
        'profile:Manage profiles'
        'get:Print a record'
        'set:Store a record'
        'rm:Delete records'
        'ls:List record keys'
        'export:Write a project bundle'
        'import:Read a project bundle'
        'diff:Compare a bundle with the vault'
        'compact:Compact the database'
        'keyring:Manage password in OS keyring'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'vaultkeep commands' commands
            ;;
        args)
            case "${words[2]}" in
                get)
                    _arguments \
                        '--query[jq expression applied to the value]:expression' \
                        '--raw[Print strings without quotes]' \
                        '*:key:_vaultkeep_keys'
                    ;;
                set)
                    _arguments \
                        '--string[Store the value as a JSON string]' \
                        '*:key:_vaultkeep_keys'
                    ;;
                rm)
                    _arguments '*:key:_vaultkeep_keys'
                    ;;
                profile)
                    _values 'subcommand' list create select update delete
                    ;;
                import|diff)
                    _files -g '*.json'
                    ;;
                keyring)
                    _values 'subcommand' save delete status
                    ;;
                help)
                    _describe -t commands 'vaultkeep commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_vaultkeep_keys() {
    local -a keys
    keys=(${(f)"$(vaultkeep ls 2>/dev/null | sed -n 's/^  //p')"})
    _describe -t keys 'record keys' keys
}

_vaultkeep "$@"
`

const fishCompletion = `# vaultkeep fish completions

set -l commands setup status unlock passwd profile get set rm ls export import diff compact keyring help completion

complete -c vaultkeep -f

# Commands
complete -c vaultkeep -n "not __fish_seen_subcommand_from $commands" -a setup -d 'Create a vault'
complete -c vaultkeep -n "not __fish_seen_subcommand_from $commands" -a status -d 'Show vault status'
complete -c vaultkeep -n "not __fish_seen_subcommand_from $commands" -a unlock -d 'Verify password'
complete -c vaultkeep -n "not __fish_seen_subcommand_from $commands" -a passwd -d 'Change password'
complete -c vaultkeep -n "not __fish_seen_subcommand_from $commands" -a profile -d 'Manage profiles'
complete -c vaultkeep -n "not __fish_seen_subcommand_from $commands" -a get -d 'Print a record'
complete -c vaultkeep -n "not __fish_seen_subcommand_from $commands" -a set -d 'Store a record'
complete -c vaultkeep -n "not __fish_seen_subcommand_from $commands" -a rm -d 'Delete records'
complete -c vaultkeep -n "not __fish_seen_subcommand_from $commands" -a ls -d 'List record keys'
complete -c vaultkeep -n "not __fish_seen_subcommand_from $commands" -a export -d 'Write a project bundle'
complete -c vaultkeep -n "not __fish_seen_subcommand_from $commands" -a import -d 'Read a project bundle'
complete -c vaultkeep -n "not __fish_seen_subcommand_from $commands" -a diff -d 'Compare bundle with vault'
complete -c vaultkeep -n "not __fish_seen_subcommand_from $commands" -a compact -d 'Compact database'
complete -c vaultkeep -n "not __fish_seen_subcommand_from $commands" -a keyring -d 'Manage password in OS keyring'
complete -c vaultkeep -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c vaultkeep -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

# record keys
complete -c vaultkeep -n "__fish_seen_subcommand_from get set rm" -a "(vaultkeep ls 2>/dev/null | string match -r '^  .*' | string trim)"
complete -c vaultkeep -n "__fish_seen_subcommand_from get" -l query -r -d 'jq expression'
complete -c vaultkeep -n "__fish_seen_subcommand_from get" -l raw -d 'Print strings without quotes'
complete -c vaultkeep -n "__fish_seen_subcommand_from set" -l string -d 'Store as JSON string'

# profile subcommands
complete -c vaultkeep -n "__fish_seen_subcommand_from profile" -a "list create select update delete"

# bundle files
complete -c vaultkeep -n "__fish_seen_subcommand_from import diff" -F

# keyring subcommands
complete -c vaultkeep -n "__fish_seen_subcommand_from keyring" -a "save delete status"

# help completions
complete -c vaultkeep -n "__fish_seen_subcommand_from help" -a "$commands"

# completion completions
complete -c vaultkeep -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
