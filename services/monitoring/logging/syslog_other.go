//go:build windows || plan9

package logging

import "errors"

func (l *Logger) AttachSyslog(address string, appName string) error {
	if address == "" {
		return nil
	}
	return errors.New("syslog is not supported on this platform")
}
