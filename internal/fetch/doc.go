// Package fetch watches the remote of the main repository.
//
// A Loop runs git fetch on a fixed interval and counts the commits the
// tracked remote ref has that HEAD lacks. Each distinct remote commit is
// announced once. Fetch failures are logged as FetchError and the loop keeps
// going; only context cancellation stops it.
package fetch
