// Package registry talks to the backend's catalog endpoints: model listings,
// saved workflow templates, provider configuration, RunningHub webapp node
// info and wallpaper uploads.
//
// Model listings are cached in memory for a few minutes per query so the
// editor can repopulate provider pickers without hammering the backend.
package registry
