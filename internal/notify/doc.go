// Package notify sends push notifications to a user's phones and keeps
// the in-app notification history.
package notify
