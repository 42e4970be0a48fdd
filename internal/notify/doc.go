// Package notify sends desktop notifications for commits and remote changes.
package notify
