// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ebirdsync/internal/errors"
)

// bashCompletionTemplate is the bash completion script for ebirdsync.
const bashCompletionTemplate = `#!/bin/bash

# Bash completion script for ebirdsync
# Installation:
#   source <(ebirdsync completion bash)

_ebirdsync_completion() {
    local cur prev commands
    commands="init import taxonomy status completion"

    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    case "${prev}" in
        -f|--file|--taxonomy|--corrections|--config)
            COMPREPLY=( $(compgen -f -- ${cur}) )
            return 0
            ;;
        --delimiter)
            COMPREPLY=( $(compgen -W "auto tab comma" -- ${cur}) )
            return 0
            ;;
    esac

    if [ $COMP_CWORD -eq 1 ]; then
        if [[ ${cur} == -* ]] ; then
            COMPREPLY=( $(compgen -W "--version --config --json --no-color --quiet" -- ${cur}) )
        else
            COMPREPLY=( $(compgen -W "${commands}" -- ${cur}) )
        fi
        return 0
    fi

    local cmd="${COMP_WORDS[1]}"
    case "${cmd}" in
        init)
            COMPREPLY=( $(compgen -W "--force --driver --dsn --batch-size --on-row-error" -- ${cur}) )
            ;;
        import)
            COMPREPLY=( $(compgen -W "--file --offset --max-rows --batch-size --taxonomy --resume --skip-bad-rows --delimiter --metrics-addr --debug" -- ${cur}) )
            ;;
        taxonomy)
            COMPREPLY=( $(compgen -W "--file --corrections --encoding --debug" -- ${cur}) )
            ;;
        status)
            COMPREPLY=( $(compgen -W "--json" -- ${cur}) )
            ;;
        completion)
            if [ $COMP_CWORD -eq 2 ]; then
                COMPREPLY=( $(compgen -W "bash zsh fish" -- ${cur}) )
            fi
            ;;
    esac
}

complete -F _ebirdsync_completion ebirdsync
`

// zshCompletionTemplate is the zsh completion script for ebirdsync.
const zshCompletionTemplate = `#compdef ebirdsync

# Zsh completion script for ebirdsync
# Installation:
#   ebirdsync completion zsh > "${fpath[1]}/_ebirdsync"

_ebirdsync() {
    local -a commands
    commands=(
        'init:Create .ebirdsync/config.yaml and the store schema'
        'import:Import an eBird export'
        'taxonomy:Load a reference taxonomy'
        'status:Show store counts'
        'completion:Generate shell completion script'
    )

    _arguments -C \
        '(- *)--version[Show version and exit]' \
        '--config[Path to config file]:config file:_files -g "*.yaml"' \
        '--json[Output as JSON]' \
        '--no-color[Disable colored output]' \
        '(-q --quiet)'{-q,--quiet}'[Suppress progress output]' \
        '1: :->command' \
        '*:: :->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                init)
                    _arguments \
                        '--force[Overwrite existing configuration]' \
                        '--driver[Store driver]:driver:(sqlite postgres)' \
                        '--dsn[Store DSN]:dsn:_files' \
                        '--batch-size[Rows per transaction]:rows:' \
                        '--on-row-error[Bad row policy]:policy:(fail skip)'
                    ;;
                import)
                    _arguments \
                        '(-f --file)'{-f,--file}'[Export to read]:export:_files' \
                        '--offset[First data row]:row:' \
                        '--max-rows[Row limit]:rows:' \
                        '--batch-size[Rows per transaction]:rows:' \
                        '--taxonomy[Reference taxonomy]:taxonomy:_files -g "*.csv"' \
                        '--resume[Continue from checkpoint]' \
                        '--skip-bad-rows[Skip unreadable rows]' \
                        '--delimiter[Field delimiter]:delimiter:(auto tab comma)' \
                        '--metrics-addr[Prometheus metrics address]:address:' \
                        '--debug[Enable debug logging]'
                    ;;
                taxonomy)
                    _arguments \
                        '(-f --file)'{-f,--file}'[Taxonomy CSV]:taxonomy:_files -g "*.csv"' \
                        '--corrections[Corrections file]:corrections:_files -g "*.yaml"' \
                        '--encoding[File encoding]:encoding:(utf-8 windows-1252 iso-8859-1)' \
                        '--debug[Enable debug logging]'
                    ;;
                status)
                    _arguments \
                        '--json[Output as JSON]'
                    ;;
                completion)
                    _arguments \
                        '1:shell:(bash zsh fish)'
                    ;;
            esac
            ;;
    esac
}

_ebirdsync
`

// fishCompletionTemplate is the fish completion script for ebirdsync.
const fishCompletionTemplate = `# Fish completion script for ebirdsync
# Installation:
#   ebirdsync completion fish > ~/.config/fish/completions/ebirdsync.fish

# Commands
complete -c ebirdsync -f -n "__fish_use_subcommand" -a "init" -d "Create config and store schema"
complete -c ebirdsync -f -n "__fish_use_subcommand" -a "import" -d "Import an eBird export"
complete -c ebirdsync -f -n "__fish_use_subcommand" -a "taxonomy" -d "Load a reference taxonomy"
complete -c ebirdsync -f -n "__fish_use_subcommand" -a "status" -d "Show store counts"
complete -c ebirdsync -f -n "__fish_use_subcommand" -a "completion" -d "Generate shell completion script"

# Global flags
complete -c ebirdsync -l version -d "Show version and exit"
complete -c ebirdsync -l config -d "Path to config file" -r
complete -c ebirdsync -l json -d "Output as JSON"
complete -c ebirdsync -l no-color -d "Disable colored output"
complete -c ebirdsync -s q -l quiet -d "Suppress progress output"

# init command flags
complete -c ebirdsync -n "__fish_seen_subcommand_from init" -l force -d "Overwrite existing configuration"
complete -c ebirdsync -n "__fish_seen_subcommand_from init" -l driver -d "Store driver" -xa "sqlite postgres"
complete -c ebirdsync -n "__fish_seen_subcommand_from init" -l dsn -d "Store DSN" -r
complete -c ebirdsync -n "__fish_seen_subcommand_from init" -l batch-size -d "Rows per transaction" -x
complete -c ebirdsync -n "__fish_seen_subcommand_from init" -l on-row-error -d "Bad row policy" -xa "fail skip"

# import command flags
complete -c ebirdsync -n "__fish_seen_subcommand_from import" -s f -l file -d "Export to read" -r
complete -c ebirdsync -n "__fish_seen_subcommand_from import" -l offset -d "First data row" -x
complete -c ebirdsync -n "__fish_seen_subcommand_from import" -l max-rows -d "Row limit" -x
complete -c ebirdsync -n "__fish_seen_subcommand_from import" -l batch-size -d "Rows per transaction" -x
complete -c ebirdsync -n "__fish_seen_subcommand_from import" -l taxonomy -d "Reference taxonomy" -r
complete -c ebirdsync -n "__fish_seen_subcommand_from import" -l resume -d "Continue from checkpoint"
complete -c ebirdsync -n "__fish_seen_subcommand_from import" -l skip-bad-rows -d "Skip unreadable rows"
complete -c ebirdsync -n "__fish_seen_subcommand_from import" -l delimiter -d "Field delimiter" -xa "auto tab comma"
complete -c ebirdsync -n "__fish_seen_subcommand_from import" -l metrics-addr -d "Prometheus metrics address" -x
complete -c ebirdsync -n "__fish_seen_subcommand_from import" -l debug -d "Enable debug logging"

# taxonomy command flags
complete -c ebirdsync -n "__fish_seen_subcommand_from taxonomy" -s f -l file -d "Taxonomy CSV" -r
complete -c ebirdsync -n "__fish_seen_subcommand_from taxonomy" -l corrections -d "Corrections file" -r
complete -c ebirdsync -n "__fish_seen_subcommand_from taxonomy" -l encoding -d "File encoding" -x
complete -c ebirdsync -n "__fish_seen_subcommand_from taxonomy" -l debug -d "Enable debug logging"

# status command flags
complete -c ebirdsync -n "__fish_seen_subcommand_from status" -l json -d "Output as JSON"

# completion command arguments
complete -c ebirdsync -n "__fish_seen_subcommand_from completion" -f -a "bash zsh fish"
`

// completionScript returns the completion script for shell.
func completionScript(shell string) (string, bool) {
	switch shell {
	case "bash":
		return bashCompletionTemplate, true
	case "zsh":
		return zshCompletionTemplate, true
	case "fish":
		return fishCompletionTemplate, true
	}
	return "", false
}

// runCompletion executes the 'completion' CLI command, printing a shell
// completion script to stdout.
//
// Usage:
//
//	ebirdsync completion [bash|zsh|fish]
func runCompletion(args []string) {
	fs := flag.NewFlagSet("completion", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ebirdsync completion <shell>

Generate shell completion scripts for bash, zsh, or fish.

Examples:
  source <(ebirdsync completion bash)
  ebirdsync completion zsh > "${fpath[1]}/_ebirdsync"
  ebirdsync completion fish > ~/.config/fish/completions/ebirdsync.fish

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() != 1 {
		errors.FatalError(errors.NewConfigError(
			"Invalid arguments",
			"The completion command requires exactly one argument: the shell name",
			"Run 'ebirdsync completion bash', 'ebirdsync completion zsh', or 'ebirdsync completion fish'",
			nil,
		), false)
	}

	script, ok := completionScript(fs.Arg(0))
	if !ok {
		errors.FatalError(errors.NewConfigError(
			"Unsupported shell",
			fmt.Sprintf("Shell '%s' is not supported. Valid options: bash, zsh, fish", fs.Arg(0)),
			"Run 'ebirdsync completion bash', 'ebirdsync completion zsh', or 'ebirdsync completion fish'",
			nil,
		), false)
	}
	fmt.Print(script)
}
