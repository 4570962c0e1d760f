//go:build !windows && !plan9

package logging

import (
	"log/syslog"

	logrusSyslog "github.com/sirupsen/logrus/hooks/syslog"
)

// AttachSyslog forwards entries to a remote syslog endpoint such as
// Papertrail. An empty address is a no-op.
func (l *Logger) AttachSyslog(address string, appName string) error {
	if address == "" {
		return nil
	}
	hook, err := logrusSyslog.NewSyslogHook("udp", address, syslog.LOG_INFO, appName)
	if err != nil {
		return err
	}
	l.Hooks.Add(hook)
	return nil
}
