// Package queue prepares upcoming sentences in the background, ahead of the
// reader, so that slow synthesis does not leave gaps between sentences.
package queue
