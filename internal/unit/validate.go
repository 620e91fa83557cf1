package unit

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// Unit names reach us from untrusted callers and end up as arguments
// to systemctl and journalctl. Arguments are always passed as a
// discrete vector, never through a shell; validation still rejects
// anything that is not a plausible unit name before a process is
// spawned.

var serviceNameRe = regexp.MustCompile(`^[A-Za-z0-9@._-]+$`)

const forbiddenChars = "/\\|&;`$\n\r"

// ValidateName rejects empty names, names containing whitespace, and
// names containing shell metacharacters or path separators.
func ValidateName(name string) error {
	if name == "" {
		return &Error{Kind: KindInvalidIdentifier, Unit: name, Err: errors.New("empty unit name")}
	}
	for _, r := range name {
		if unicode.IsSpace(r) {
			return &Error{Kind: KindInvalidIdentifier, Unit: name, Err: errors.New("unit name contains whitespace")}
		}
	}
	if strings.ContainsAny(name, forbiddenChars) {
		return &Error{Kind: KindInvalidIdentifier, Unit: name, Err: errors.New("unit name contains forbidden characters")}
	}
	return nil
}

// ValidateServiceName restricts service names to the character set
// systemd itself accepts for simple unit names.
func ValidateServiceName(name string) error {
	if name == "" {
		return &Error{Kind: KindInvalidIdentifier, Unit: name, Err: errors.New("empty unit name")}
	}
	if !serviceNameRe.MatchString(name) {
		return &Error{Kind: KindInvalidIdentifier, Unit: name, Err: errors.New("unit name contains invalid characters")}
	}
	return nil
}

// ValidateTimerName applies ValidateName and additionally requires a
// .timer or .service suffix.
func ValidateTimerName(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if !strings.HasSuffix(name, ".timer") && !strings.HasSuffix(name, ".service") {
		return &Error{Kind: KindInvalidIdentifier, Unit: name, Err: errors.New("unit name must end in .timer or .service")}
	}
	return nil
}

// ServiceForTimer maps a timer unit name to the service it activates
// (foo.timer -> foo.service).
func ServiceForTimer(timer string) (string, error) {
	base, ok := strings.CutSuffix(timer, ".timer")
	if !ok {
		return "", &Error{Kind: KindInvalidIdentifier, Unit: timer, Err: errors.New("unit name must end in .timer")}
	}
	return base + ".service", nil
}

// ServiceFor maps a unit name to the service whose journal carries its
// execution history: a timer maps to the service it activates, a
// service maps to itself.
func ServiceFor(name string) (string, error) {
	if err := ValidateTimerName(name); err != nil {
		return "", err
	}
	if strings.HasSuffix(name, ".service") {
		return name, nil
	}
	return ServiceForTimer(name)
}
