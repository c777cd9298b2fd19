package commands

import (
	"net/url"
	"strings"

	"github.com/jtarchie/scrub/redaction"
)

// redactURL returns the URL string with any password and the "key" query
// parameter replaced by "xxxxx", so it is safe to include in log output.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return redaction.RedactValues(rawURL, dsnSecrets(rawURL))
	}

	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}

	query := u.Query()
	if query.Has("key") {
		query.Set("key", "xxxxx")
		u.RawQuery = query.Encode()
	}

	return u.String()
}

// dsnSecrets returns the password and "key" parameter of a DSN. Unparsable
// DSNs are searched for "key=" directly, since their parse errors quote the
// whole string.
func dsnSecrets(dsn string) []string {
	var secrets []string

	u, err := url.Parse(dsn)
	if err != nil {
		_, key, found := strings.Cut(dsn, "key=")
		if found {
			key, _, _ = strings.Cut(key, "&")
			secrets = append(secrets, key)
		}

		return secrets
	}

	if u.User != nil {
		if password, hasPassword := u.User.Password(); hasPassword {
			secrets = append(secrets, password)
		}
	}

	if key := u.Query().Get("key"); key != "" {
		secrets = append(secrets, key)
	}

	return secrets
}

// secretError masks known secret values in the message of the error it
// wraps, while keeping errors.Is and errors.As working.
type secretError struct {
	err     error
	message string
}

func (e *secretError) Error() string {
	return e.message
}

func (e *secretError) Unwrap() error {
	return e.err
}

func redactError(err error, dsn string) error {
	if err == nil {
		return nil
	}

	secrets := dsnSecrets(dsn)
	if len(secrets) == 0 {
		return err
	}

	return &secretError{
		err:     err,
		message: redaction.RedactValues(err.Error(), secrets),
	}
}
