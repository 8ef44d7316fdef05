package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blackmichael/blogify/internal/app"
	"github.com/blackmichael/blogify/internal/domain"
	"github.com/spf13/cobra"
)

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in viewer",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(_ context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			ident, _ := a.Session.Identity()
			if ident == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", ident.Name, ident.ID)
			return nil
		}),
	}
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			if password == "" {
				password = os.Getenv("BLOGIFY_PASSWORD")
			}
			if email == "" || password == "" {
				return errors.New("--email and --password are required (or set BLOGIFY_PASSWORD)")
			}
			if _, err := a.Login(ctx, email, password); err != nil {
				return errors.New(domain.UserMessage(err))
			}
			printNotice(cmd.OutOrStdout(), a)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			if err := a.Logout(ctx); err != nil {
				return errors.New(domain.UserMessage(err))
			}
			printNotice(cmd.OutOrStdout(), a)
			return nil
		}),
	}
}

func (c *cli) homeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "home",
		Short: "Show the home feed",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			viewer := a.Session.ViewerID()
			feed, err := a.Fetchers.Home.SetKey(ctx, viewer)
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			w := cmd.OutOrStdout()
			printPosts(w, "Latest", feed.Blogs, viewer)
			printPosts(w, "Popular", feed.PopularBlogs, viewer)
			printAuthors(w, "Featured authors", feed.FeaturedAuthors, viewer)
			return nil
		}),
	}
}

func (c *cli) postCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "post <post-id>",
		Short: "Show a post with its comments",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			post, err := a.OpenPost(ctx, args[0])
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			saved := a.Reducers.DetectSaved(post.ID)
			w := cmd.OutOrStdout()
			printPost(w, post, a.Session.ViewerID(), saved.Saved, saved.ListName)

			if detail := a.Fetchers.PostDetail.State().Data; len(detail.RelatedBlogs) > 0 {
				fmt.Fprintln(w)
				printPosts(w, "Related", detail.RelatedBlogs, a.Session.ViewerID())
			}
			return nil
		}),
	}
}

func (c *cli) likeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "like <post-id>",
		Short: "Toggle your like on a post",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			if _, err := a.OpenPost(ctx, args[0]); err != nil {
				return errors.New(domain.UserMessage(err))
			}
			res, err := a.Reducers.Like(ctx, args[0])
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			printNotice(cmd.OutOrStdout(), a)
			fmt.Fprintf(cmd.OutOrStdout(), "%d likes\n", res.Likes)
			return nil
		}),
	}
}

func (c *cli) commentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <post-id> <text>",
		Short: "Comment on a post",
		Args:  cobra.ExactArgs(2),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			if _, err := a.Reducers.AddComment(ctx, args[0], args[1]); err != nil {
				return errors.New(domain.UserMessage(err))
			}
			printNotice(cmd.OutOrStdout(), a)
			return nil
		}),
	}
}

func (c *cli) replyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reply <post-id> <comment-id> <text>",
		Short: "Reply to a comment",
		Args:  cobra.ExactArgs(3),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			if _, err := a.Reducers.AddReply(ctx, args[0], args[1], args[2]); err != nil {
				return errors.New(domain.UserMessage(err))
			}
			printNotice(cmd.OutOrStdout(), a)
			return nil
		}),
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <post-id>",
		Short: "Delete one of your posts",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			if err := a.Reducers.DeletePost(ctx, args[0]); err != nil {
				return errors.New(domain.UserMessage(err))
			}
			printNotice(cmd.OutOrStdout(), a)
			return nil
		}),
	}
}

func (c *cli) followCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "follow <author-id>",
		Short: "Toggle following an author",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			if _, err := a.Fetchers.Profile.SetKey(ctx, args[0]); err != nil {
				return errors.New(domain.UserMessage(err))
			}
			res, err := a.Reducers.Follow(ctx, args[0])
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			printNotice(cmd.OutOrStdout(), a)
			fmt.Fprintf(cmd.OutOrStdout(), "%d followers\n", res.Followers)
			return nil
		}),
	}
}

func (c *cli) listsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lists",
		Short: "Show your lists",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			lists, err := a.Fetchers.Lists.Load(ctx, a.Session.ViewerID())
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			printLists(cmd.OutOrStdout(), "Your lists", lists)
			return nil
		}),
	}
}

func (c *cli) saveCmd() *cobra.Command {
	var listID string
	cmd := &cobra.Command{
		Use:   "save <post-id>",
		Short: "Save a post to a list",
		Long:  "Save a post to a list. Without --list the list already holding the post is used.",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			if _, err := a.OpenPost(ctx, args[0]); err != nil {
				return errors.New(domain.UserMessage(err))
			}
			state, err := a.Reducers.Save(ctx, args[0], listID)
			if errors.Is(err, domain.ErrMissingTarget) {
				lists, _ := a.Store.Lists()
				printLists(cmd.ErrOrStderr(), "Pick a list with --list:", lists)
			}
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			printNotice(cmd.OutOrStdout(), a)
			if state.ListName != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "saved in %s\n", state.ListName)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&listID, "list", "", "target list id")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Create, update or delete a list",
	}

	var title, description, photo string
	addInputFlags := func(sub *cobra.Command) {
		sub.Flags().StringVar(&title, "title", "", "list title")
		sub.Flags().StringVar(&description, "description", "", "list description")
		sub.Flags().StringVar(&photo, "photo", "", "path of an image to upload")
	}
	input := func() (domain.ListInput, error) {
		in := domain.ListInput{Title: title, Description: description}
		if photo != "" {
			data, err := os.ReadFile(photo)
			if err != nil {
				return in, fmt.Errorf("read photo: %w", err)
			}
			in.Photo = data
			in.PhotoName = filepath.Base(photo)
		}
		return in, nil
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a list",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			in, err := input()
			if err != nil {
				return err
			}
			l, err := a.Reducers.CreateList(ctx, in)
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			printNotice(cmd.OutOrStdout(), a)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", l.ID, l.Title)
			return nil
		}),
	}
	addInputFlags(create)

	update := &cobra.Command{
		Use:   "update <list-id>",
		Short: "Update a list",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			if _, err := a.Fetchers.Lists.Load(ctx, a.Session.ViewerID()); err != nil {
				return errors.New(domain.UserMessage(err))
			}
			in, err := input()
			if err != nil {
				return err
			}
			if _, err := a.Reducers.UpdateList(ctx, args[0], in); err != nil {
				return errors.New(domain.UserMessage(err))
			}
			printNotice(cmd.OutOrStdout(), a)
			return nil
		}),
	}
	addInputFlags(update)

	remove := &cobra.Command{
		Use:   "delete <list-id>",
		Short: "Delete a list",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			if err := a.Reducers.DeleteList(ctx, args[0]); err != nil {
				return errors.New(domain.UserMessage(err))
			}
			printNotice(cmd.OutOrStdout(), a)
			return nil
		}),
	}

	cmd.AddCommand(create, update, remove)
	return cmd
}

func (c *cli) profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <user-id>",
		Short: "Show an author's profile",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			p, err := a.Fetchers.Profile.SetKey(ctx, args[0])
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			viewer := a.Session.ViewerID()
			w := cmd.OutOrStdout()
			printAuthors(w, "Author", []domain.Author{p.User}, viewer)
			if p.User.Bio != "" {
				fmt.Fprintf(w, "  %s\n", p.User.Bio)
			}
			printPosts(w, "Posts", p.Blogs, viewer)
			printPosts(w, "Liked", p.LikedBlogs, viewer)
			printPosts(w, "Saved", p.SavedBlogs, viewer)
			if len(p.Lists) > 0 {
				printLists(w, "Lists", p.Lists)
			}
			return nil
		}),
	}
}

func (c *cli) editProfileCmd() *cobra.Command {
	var name, email, bio, photo string
	cmd := &cobra.Command{
		Use:   "edit-profile",
		Short: "Update your name, email, bio or photo",
		Long:  "Update your own profile. Name and bio keep their current value unless given.",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			viewer := a.Session.ViewerID()
			in := domain.ProfileInput{Name: name, Email: email, Bio: bio}
			if viewer != "" {
				p, err := a.Fetchers.Profile.SetKey(ctx, viewer)
				if err != nil {
					return errors.New(domain.UserMessage(err))
				}
				if !cmd.Flags().Changed("name") {
					in.Name = p.User.Name
				}
				if !cmd.Flags().Changed("bio") {
					in.Bio = p.User.Bio
				}
			}
			if photo != "" {
				data, err := os.ReadFile(photo)
				if err != nil {
					return fmt.Errorf("read photo: %w", err)
				}
				in.Photo = data
				in.PhotoName = filepath.Base(photo)
			}

			author, err := a.Reducers.UpdateProfile(ctx, in)
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			printNotice(cmd.OutOrStdout(), a)
			printAuthors(cmd.OutOrStdout(), "Profile", []domain.Author{author}, viewer)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&bio, "bio", "", "short biography")
	cmd.Flags().StringVar(&photo, "photo", "", "path of a profile photo to upload")
	return cmd
}

func (c *cli) tagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tag <tag>",
		Short: "Show posts with a tag",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			feed, err := a.Fetchers.Tag.SetKey(ctx, args[0])
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			w := cmd.OutOrStdout()
			printPosts(w, "#"+args[0], feed.Blogs, a.Session.ViewerID())
			if len(feed.PopularTags) > 0 {
				fmt.Fprintf(w, "popular tags: %v\n", feed.PopularTags)
			}
			return nil
		}),
	}
}

func (c *cli) searchCmd() *cobra.Command {
	var q domain.SearchQuery
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search authors, posts and lists",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			q.Term = args[0]
			if q.Limit <= 0 {
				q.Limit = a.Config.SearchLimit
			}
			res, err := a.Fetchers.Search.Load(ctx, q)
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}

			viewer := a.Session.ViewerID()
			w := cmd.OutOrStdout()
			printAuthors(w, "Authors: "+pageInfo(res.Authors.Total, max(q.AuthorPage, 1), q.Limit, res.Authors.TotalPages(q.Limit)), res.Authors.Items, viewer)
			printPosts(w, "Posts: "+pageInfo(res.Blogs.Total, max(q.BlogPage, 1), q.Limit, res.Blogs.TotalPages(q.Limit)), res.Blogs.Items, viewer)
			if res.Lists.Total > 0 {
				printLists(w, "Lists: "+pageInfo(res.Lists.Total, max(q.ListPage, 1), q.Limit, res.Lists.TotalPages(q.Limit)), res.Lists.Items)
			}
			if res.Authors.Total+res.Blogs.Total+res.Lists.Total == 0 {
				fmt.Fprintln(w, "no results")
			}
			return nil
		}),
	}
	cmd.Flags().IntVar(&q.AuthorPage, "author-page", 1, "page of author results")
	cmd.Flags().IntVar(&q.BlogPage, "blog-page", 1, "page of post results")
	cmd.Flags().IntVar(&q.ListPage, "list-page", 1, "page of list results")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "results per page (default from config)")
	return cmd
}

func (c *cli) notificationsCmd() *cobra.Command {
	var unread, markRead bool
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Show your notifications",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			items, err := a.Notifications(ctx)
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			if unread {
				items = a.Inbox.Unread()
			}
			printNotifications(cmd.OutOrStdout(), items)
			if markRead {
				return a.Inbox.MarkAllRead(ctx)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "only show unread notifications")
	cmd.Flags().BoolVar(&markRead, "mark-read", false, "mark every notification read afterwards")
	return cmd
}
