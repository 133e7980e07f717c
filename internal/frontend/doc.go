// Package frontend implements the interactive terminal chat client.
//
// It follows The Elm Architecture via bubbletea: the Model holds the
// transcript and input state, Update reacts to key presses and backend
// replies, and View renders the chat window. Each prompt is posted to the
// backend chat endpoint asynchronously; transport failures become error
// replies in the transcript instead of crashing the UI.
package frontend
