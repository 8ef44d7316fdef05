package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/blackmichael/blogify/internal/app"
	"github.com/blackmichael/blogify/internal/domain"
	"github.com/dustin/go-humanize"
)

const excerptLength = 80

func when(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func printPosts(w io.Writer, heading string, posts []domain.Post, viewerID string) {
	if len(posts) == 0 {
		return
	}
	fmt.Fprintf(w, "%s\n", heading)
	for _, p := range posts {
		mark := " "
		if domain.IsLiked(p, viewerID) {
			mark = "♥"
		}
		fmt.Fprintf(w, "  %s %-10s %s (%s likes, %s comments, %s)\n",
			mark, p.ID, p.Title,
			humanize.Comma(int64(domain.LikeCount(p))),
			humanize.Comma(int64(domain.CommentCount(p))),
			when(p.CreatedAt))
		if ex := domain.Excerpt(p.Content, excerptLength); ex != "" {
			fmt.Fprintf(w, "      %s\n", ex)
		}
	}
}

func printPost(w io.Writer, p domain.Post, viewerID string, saved bool, listName string) {
	fmt.Fprintf(w, "%s\n", p.Title)
	fmt.Fprintf(w, "by %s, %s\n", p.PublishedByName, when(p.CreatedAt))
	if len(p.Tags) > 0 {
		fmt.Fprintf(w, "tags: %s\n", strings.Join(p.Tags, ", "))
	}

	liked := "not liked"
	if domain.IsLiked(p, viewerID) {
		liked = "liked"
	}
	fmt.Fprintf(w, "%d likes (%s)\n", domain.LikeCount(p), liked)
	if saved {
		fmt.Fprintf(w, "saved in %s\n", listName)
	}
	if ex := domain.Excerpt(p.Content, 0); ex != "" {
		fmt.Fprintf(w, "\n%s\n", ex)
	}

	if len(p.Comments) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d comments\n", domain.CommentCount(p))
	for _, c := range p.Comments {
		fmt.Fprintf(w, "  [%s] %s: %s (%s)\n", c.ID, c.Name, c.Text, when(c.Date))
		for _, r := range c.Replies {
			fmt.Fprintf(w, "      [%s] %s: %s (%s)\n", r.ID, r.Name, r.Text, when(r.Date))
		}
	}
}

func printAuthors(w io.Writer, heading string, authors []domain.Author, viewerID string) {
	if len(authors) == 0 {
		return
	}
	fmt.Fprintf(w, "%s\n", heading)
	for _, a := range authors {
		mark := " "
		if domain.IsFollowing(a, viewerID) {
			mark = "✓"
		}
		fmt.Fprintf(w, "  %s %-10s %s (%s followers)\n", mark, a.ID, a.Name, humanize.Comma(int64(len(a.Followers))))
	}
}

func printLists(w io.Writer, heading string, lists []domain.List) {
	fmt.Fprintf(w, "%s\n", heading)
	if len(lists) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, l := range lists {
		fmt.Fprintf(w, "  %-10s %s (%d posts)\n", l.ID, l.Title, len(l.Blogs))
		if l.Description != "" {
			fmt.Fprintf(w, "      %s\n", l.Description)
		}
	}
}

func printNotifications(w io.Writer, items []domain.Notification) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no notifications")
		return
	}
	for _, n := range items {
		mark := "•"
		if n.Read {
			mark = " "
		}
		fmt.Fprintf(w, "%s %s: %s (%s)\n", mark, n.Title, n.Message, when(n.CreatedAt))
	}
}

// printNotice writes the notice left by the last interaction, if any.
func printNotice(w io.Writer, a *app.App) {
	if n, ok := a.Notices.Current(); ok {
		fmt.Fprintln(w, n.Message)
	}
}

func pageInfo(total, page, limit int, pages int) string {
	if pages == 0 {
		return fmt.Sprintf("%d results", total)
	}
	return fmt.Sprintf("%d results, page %d of %d (%d per page)", total, page, pages, limit)
}
