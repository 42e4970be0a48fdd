// Package service manages gitwatch as a systemd user service.
//
// Every watch runs as an instance of the template unit gitwatch@.service,
// so the watch called "notes" is gitwatch@notes.service. The template is
// installed once by init and never overwritten; Manager enables, starts,
// stops and inspects instances through systemctl --user.
package service
