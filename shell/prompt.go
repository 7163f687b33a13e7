// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"fmt"
	"strings"
)

// PromptScript returns the lines that prepend prefix to the prompt of
// a running shell of the given kind. Variables in prefix (typically
// $TETHER_SESSION_NAME) are expanded by the shell once, at injection.
// Every line starts with a space to stay out of history.
func PromptScript(kind Kind, prefix string) (string, error) {
	var lines []string
	switch kind {
	case Bash:
		lines = []string{
			fmt.Sprintf(`__tether_prefix="%s"`, escapeDoubleQuoted(prefix)),
			`if [[ -z "${PROMPT_COMMAND+x}" ]]; then PROMPT_COMMAND=""; fi`,
			`__tether_old_prompt_command=("${PROMPT_COMMAND[@]}")`,
			`__tether_old_ps1="${PS1}"`,
			`__tether_prompt_command() { PS1="${__tether_old_ps1}"; local hook; for hook in "${__tether_old_prompt_command[@]}"; do eval "$hook"; done; PS1="${__tether_prefix}${PS1}"; }`,
			`PROMPT_COMMAND=__tether_prompt_command`,
		}
	case Zsh:
		lines = []string{
			fmt.Sprintf(`typeset -g __tether_prefix="%s"`, escapeDoubleQuoted(prefix)),
			`__tether_prompt_precmd() { [[ "$PROMPT" == "${__tether_prefix}"* ]] || PROMPT="${__tether_prefix}${PROMPT}"; }`,
			`typeset -ga precmd_functions`,
			`precmd_functions+=(__tether_prompt_precmd)`,
		}
	case Fish:
		lines = []string{
			fmt.Sprintf(`set -g __tether_prefix "%s"`, escapeFishDoubleQuoted(prefix)),
			`functions --copy fish_prompt __tether_original_fish_prompt`,
			`function fish_prompt; printf '%s' "$__tether_prefix"; __tether_original_fish_prompt; end`,
		}
	default:
		return "", fmt.Errorf("no prompt hook for shell %q", kind)
	}

	var script strings.Builder
	for _, line := range lines {
		script.WriteByte(' ')
		script.WriteString(line)
		script.WriteByte('\n')
	}
	return script.String(), nil
}

// escapeDoubleQuoted escapes s for a bash or zsh double-quoted string
// while leaving $VAR expansion intact.
func escapeDoubleQuoted(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`").Replace(s)
}

func escapeFishDoubleQuoted(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
