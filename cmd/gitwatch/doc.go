// Command gitwatch watches directories and commits changes to git after a
// quiet period.
//
// Each watch is a named YAML configuration in the configuration directory.
// gitwatch init creates one and installs a systemd user template unit;
// gitwatch up and down drive the gitwatch@<name>.service instance, which in
// turn runs gitwatch run <name> in the foreground. The remaining commands
// inspect configurations and their services:
//
//	gitwatch ls
//	gitwatch status [name]
//	gitwatch logs [name] [-f] [-n lines]
//	gitwatch edit-config [name]
//	gitwatch edit-ignore
//	gitwatch test-ignore <path> [name]
//	gitwatch validate [name]
//
// The name defaults to "config".
package main
