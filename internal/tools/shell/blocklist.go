package shell

import (
	"path/filepath"
	"regexp"
	"strings"
)

// dangerousPatterns match command text that is never run, whatever the
// approval state. Keys name the category for the rejection message.
var dangerousPatterns = map[string]*regexp.Regexp{
	"recursive delete of root or home": regexp.MustCompile(`rm\s+(--?[a-zA-Z-]+\s+)*(/|~)(\s|$)`),
	"write to raw device":              regexp.MustCompile(`>\s*/dev/(sd[a-z]|hd[a-z]|nvme\S+|mmcblk\S+|mem|kmem)`),
	"filesystem format":                regexp.MustCompile(`(^|\s)mkfs(\.\w+)?(\s|$)`),
	"raw disk copy":                    regexp.MustCompile(`(^|\s)dd\s+if=`),
	"fork bomb":                        regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;?\s*:`),
	"privilege escalation":             regexp.MustCompile(`(^|\s)(sudo|su)(\s|$)`),
	"system power control":             regexp.MustCompile(`(^|\s)(shutdown|reboot|halt|poweroff)(\s|$)`),
	"remote script piped to shell":     regexp.MustCompile(`(curl|wget)[^|]*\|\s*(ba|z|da|fi)?sh(\s|$)`),
	"shell eval":                       regexp.MustCompile(`(^|\s)eval(\s|$)`),
	"world-writable chmod":             regexp.MustCompile(`chmod\s+(-[a-zA-Z]+\s+)*(777|755)(\s|$)`),
}

// interactiveCommands need a TTY and would hang a non-interactive runner.
var interactiveCommands = map[string]bool{
	"vi": true, "vim": true, "nvim": true, "nano": true, "emacs": true,
	"pico": true, "htop": true, "top": true, "less": true, "more": true,
	"man": true, "screen": true, "tmux": true, "ssh": true, "telnet": true,
	"ftp": true,
}

var segmentSeparators = regexp.MustCompile(`\|\||&&|[|;]`)

// CheckCommand inspects command text before execution. It returns the
// matched category for blocked commands, or the command name for
// interactive ones; both empty means the command may run.
func CheckCommand(command string) (blocked string, interactive string) {
	for category, pattern := range dangerousPatterns {
		if pattern.MatchString(command) {
			return category, ""
		}
	}
	for _, segment := range segmentSeparators.Split(command, -1) {
		name := leadingCommand(segment)
		if interactiveCommands[name] {
			return "", name
		}
	}
	return "", ""
}

// leadingCommand finds the executable name of one pipeline segment,
// skipping env assignments like FOO=bar.
func leadingCommand(segment string) string {
	for _, field := range strings.Fields(segment) {
		if strings.Contains(field, "=") && !strings.HasPrefix(field, "=") {
			continue
		}
		return filepath.Base(field)
	}
	return ""
}
