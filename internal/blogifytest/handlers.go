package blogifytest

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/blackmichael/blogify/internal/domain"
	"github.com/labstack/echo/v4"
)

func (b *Backend) routes(e *echo.Echo) {
	e.GET("/", b.home)
	e.GET("/realtime", b.realtime)

	e.GET("/auth/user-info", b.userInfo)
	e.POST("/auth/login", b.login)
	e.POST("/auth/logout", b.logout)

	e.GET("/blogs/blog-detail/:id", b.blogDetail)
	e.GET("/blogs/find-by-tag/:tag", b.findByTag)
	e.PUT("/blogs/like-blog", b.likeBlog, b.requireUser)
	e.POST("/blogs/add-comment", b.addComment, b.requireUser)
	e.PUT("/blogs/reply-to-comment", b.replyToComment, b.requireUser)
	e.DELETE("/blogs/delete-blog/:id", b.deleteBlog, b.requireUser)

	e.GET("/lists/all-lists", b.allLists, b.requireUser)
	e.POST("/lists/create", b.createList, b.requireUser)
	e.PUT("/lists/add-blog", b.addBlogToList, b.requireUser)
	e.PUT("/lists/update-list/:id", b.updateList, b.requireUser)
	e.DELETE("/lists/delete-list/:id", b.deleteList, b.requireUser)

	e.POST("/users/follow", b.follow, b.requireUser)
	e.GET("/users/profile/:id", b.profile)
	e.PUT("/users/update-profile", b.updateProfile, b.requireUser)

	e.GET("/notifications/all-notifications", b.allNotifications, b.requireUser)
	e.GET("/search", b.search)
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, echo.Map{"success": false, "message": message})
}

// viewer returns the user id bound to the request's session cookie.
func (b *Backend) viewer(c echo.Context) string {
	cookie, err := c.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[cookie.Value]
}

func (b *Backend) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := b.viewer(c)
		if id == "" {
			return fail(c, http.StatusUnauthorized, "Please login first")
		}
		c.Set("userID", id)
		return next(c)
	}
}

func userID(c echo.Context) string {
	id, _ := c.Get("userID").(string)
	return id
}

func (b *Backend) userInfo(c echo.Context) error {
	id := b.viewer(c)
	b.mu.Lock()
	u, ok := b.users[id]
	b.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusOK, echo.Map{"success": false, "message": "Not authenticated"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": u.identity})
}

func (b *Backend) login(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range b.userOrder {
		u := b.users[id]
		if u.email == body.Email && u.password == body.Password {
			token := b.nextID("session")
			b.sessions[token] = id
			c.SetCookie(&http.Cookie{Name: sessionCookie, Value: token, Path: "/", HttpOnly: true})
			return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Logged in successfully", "user": u.identity})
		}
	}
	return fail(c, http.StatusUnauthorized, "Invalid credentials")
}

func (b *Backend) logout(c echo.Context) error {
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		b.mu.Lock()
		delete(b.sessions, cookie.Value)
		b.mu.Unlock()
	}
	c.SetCookie(&http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Logged out"})
}

func (b *Backend) home(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	blogs := b.allPostsLocked()
	popular := slices.Clone(blogs)
	slices.SortStableFunc(popular, func(x, y domain.Post) int {
		return domain.LikeCount(y) - domain.LikeCount(x)
	})
	authors := make([]domain.Author, 0, len(b.userOrder))
	for _, id := range b.userOrder {
		authors = append(authors, b.authorLocked(id))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":         true,
		"blogs":           blogs,
		"popularBlogs":    popular,
		"featuredAuthors": authors,
	})
}

func (b *Backend) allPostsLocked() []domain.Post {
	out := make([]domain.Post, 0, len(b.postOrder))
	for _, id := range b.postOrder {
		if p, ok := b.posts[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out
}

func (b *Backend) authorLocked(id string) domain.Author {
	u := b.users[id]
	a := domain.Author{
		ID:        id,
		Name:      u.identity.Name,
		PhotoURL:  u.identity.PhotoURL,
		Bio:       u.bio,
		Role:      u.identity.Role,
		Followers: []domain.FollowerRef{},
	}
	for _, f := range u.followers {
		a.Followers = append(a.Followers, domain.FollowerRef{ID: f})
	}
	return a
}

func (b *Backend) blogDetail(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.posts[c.Param("id")]
	if !ok {
		return fail(c, http.StatusNotFound, "Blog not found")
	}
	related := []domain.Post{}
	for _, other := range b.allPostsLocked() {
		if other.ID == p.ID {
			continue
		}
		if slices.ContainsFunc(other.Tags, func(t string) bool { return slices.Contains(p.Tags, t) }) {
			related = append(related, other)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "blog": p.Clone(), "relatedBlogs": related})
}

func (b *Backend) findByTag(c echo.Context) error {
	tag := c.Param("tag")

	b.mu.Lock()
	defer b.mu.Unlock()

	blogs := []domain.Post{}
	counts := map[string]int{}
	for _, p := range b.allPostsLocked() {
		for _, t := range p.Tags {
			counts[t]++
		}
		if slices.Contains(p.Tags, tag) {
			blogs = append(blogs, p)
		}
	}
	popular := make([]string, 0, len(counts))
	for t := range counts {
		popular = append(popular, t)
	}
	slices.SortFunc(popular, func(x, y string) int {
		if counts[x] != counts[y] {
			return counts[y] - counts[x]
		}
		return strings.Compare(x, y)
	})
	return c.JSON(http.StatusOK, echo.Map{"success": true, "blogs": blogs, "popularTags": popular})
}

func (b *Backend) likeBlog(c echo.Context) error {
	var body struct {
		BlogID string `json:"blogId"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request")
	}
	uid := userID(c)

	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.posts[body.BlogID]
	if !ok {
		return fail(c, http.StatusNotFound, "Blog not found")
	}
	message := "Blog liked"
	if i := slices.Index(p.LikedBy, uid); i >= 0 {
		p.LikedBy = slices.Delete(p.LikedBy, i, i+1)
		message = "Blog unliked"
	} else {
		p.LikedBy = append(p.LikedBy, uid)
		b.notifyLocked(p.PublishedBy, uid, domain.Notification{
			Type:    domain.NotificationLikedBlog,
			Title:   "New like",
			Message: b.users[uid].identity.Name + " liked your blog",
			BlogID:  p.ID,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": message, "blog": p.Clone()})
}

func (b *Backend) addComment(c echo.Context) error {
	var body struct {
		BlogID  string `json:"blogId"`
		Comment string `json:"comment"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request")
	}
	if strings.TrimSpace(body.Comment) == "" {
		return fail(c, http.StatusBadRequest, "Comment cannot be empty")
	}
	uid := userID(c)

	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.posts[body.BlogID]
	if !ok {
		return fail(c, http.StatusNotFound, "Blog not found")
	}
	p.Comments = append(p.Comments, domain.Comment{
		ID:   b.nextID("comment"),
		Name: b.users[uid].identity.Name,
		Text: body.Comment,
		Date: b.clock(),
	})
	b.notifyLocked(p.PublishedBy, uid, domain.Notification{
		Type:    domain.NotificationAddedComment,
		Title:   "New comment",
		Message: b.users[uid].identity.Name + " commented on your blog",
		BlogID:  p.ID,
	})
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Comment added", "blog": p.Clone()})
}

func (b *Backend) replyToComment(c echo.Context) error {
	var body struct {
		BlogID    string `json:"blogId"`
		CommentID string `json:"commentId"`
		ReplyText string `json:"replyText"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request")
	}
	uid := userID(c)

	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.posts[body.BlogID]
	if !ok {
		return fail(c, http.StatusNotFound, "Blog not found")
	}
	i := slices.IndexFunc(p.Comments, func(cm domain.Comment) bool { return cm.ID == body.CommentID })
	if i < 0 {
		return fail(c, http.StatusNotFound, "Comment not found")
	}
	p.Comments[i].Replies = append(p.Comments[i].Replies, domain.Comment{
		ID:   b.nextID("reply"),
		Name: b.users[uid].identity.Name,
		Text: body.ReplyText,
		Date: b.clock(),
	})
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Reply added", "blog": p.Clone()})
}

func (b *Backend) deleteBlog(c echo.Context) error {
	id := c.Param("id")
	uid := userID(c)

	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.posts[id]
	if !ok {
		return fail(c, http.StatusNotFound, "Blog not found")
	}
	if p.PublishedBy != uid {
		return fail(c, http.StatusForbidden, "You can only delete your own blogs")
	}
	delete(b.posts, id)
	b.postOrder = slices.DeleteFunc(b.postOrder, func(x string) bool { return x == id })
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Blog deleted"})
}

func (b *Backend) listsOfLocked(owner string) []domain.List {
	out := []domain.List{}
	for _, id := range b.listOrder {
		if l, ok := b.lists[id]; ok && l.owner == owner {
			out = append(out, l.list.Clone())
		}
	}
	return out
}

func (b *Backend) allLists(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	lists := b.listsOfLocked(userID(c))
	if len(lists) == 0 {
		return fail(c, http.StatusNotFound, "No lists found.")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "lists": lists})
}

func (b *Backend) createList(c echo.Context) error {
	title := strings.TrimSpace(c.FormValue("title"))
	if title == "" {
		return fail(c, http.StatusBadRequest, "Title is required")
	}
	l := domain.List{Title: title, Description: c.FormValue("description"), Blogs: []domain.PostRef{}}
	if fh, err := c.FormFile("photo"); err == nil {
		l.PhotoURL = "/uploads/" + fh.Filename
	}

	b.mu.Lock()
	l.ID = b.nextID("list")
	b.lists[l.ID] = &list{list: l.Clone(), owner: userID(c)}
	b.listOrder = append(b.listOrder, l.ID)
	b.mu.Unlock()

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": "List created", "list": l})
}

func (b *Backend) addBlogToList(c echo.Context) error {
	var body struct {
		Item   domain.Post `json:"item"`
		ListID string      `json:"listId"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.lists[body.ListID]
	if !ok || l.owner != userID(c) {
		return fail(c, http.StatusNotFound, "List not found")
	}
	if !l.list.Contains(body.Item.ID) {
		l.list.Blogs = append(l.list.Blogs, body.Item.Ref())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Blog saved to " + l.list.Title})
}

func (b *Backend) updateList(c echo.Context) error {
	id := c.Param("id")

	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.lists[id]
	if !ok || l.owner != userID(c) {
		return fail(c, http.StatusNotFound, "List not found")
	}
	if title := strings.TrimSpace(c.FormValue("title")); title != "" {
		l.list.Title = title
	}
	l.list.Description = c.FormValue("description")
	if fh, err := c.FormFile("photo"); err == nil {
		l.list.PhotoURL = "/uploads/" + fh.Filename
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "List updated", "list": l.list.Clone()})
}

func (b *Backend) deleteList(c echo.Context) error {
	id := c.Param("id")

	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.lists[id]
	if !ok || l.owner != userID(c) {
		return fail(c, http.StatusNotFound, "List not found")
	}
	delete(b.lists, id)
	b.listOrder = slices.DeleteFunc(b.listOrder, func(x string) bool { return x == id })
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "List deleted"})
}

func (b *Backend) follow(c echo.Context) error {
	var body struct {
		FollowingID string `json:"followingId"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request")
	}
	uid := userID(c)
	if uid == body.FollowingID {
		return fail(c, http.StatusBadRequest, "You cannot follow yourself")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	target, ok := b.users[body.FollowingID]
	if !ok {
		return fail(c, http.StatusNotFound, "Author not found")
	}
	message := "Followed " + target.identity.Name
	if i := slices.Index(target.followers, uid); i >= 0 {
		target.followers = slices.Delete(target.followers, i, i+1)
		message = "Unfollowed " + target.identity.Name
	} else {
		target.followers = append(target.followers, uid)
		b.notifyLocked(body.FollowingID, uid, domain.Notification{
			Type:    domain.NotificationFollowed,
			Title:   "New follower",
			Message: b.users[uid].identity.Name + " started following you",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": message, "author": b.authorLocked(body.FollowingID)})
}

func (b *Backend) updateProfile(c echo.Context) error {
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		return fail(c, http.StatusBadRequest, "Name is required")
	}
	email := strings.TrimSpace(c.FormValue("email"))
	uid := userID(c)

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, other := range b.users {
		if id != uid && email != "" && other.email == email {
			return fail(c, http.StatusConflict, "Email already in use")
		}
	}
	u := b.users[uid]
	u.identity.Name = name
	u.bio = c.FormValue("bio")
	if email != "" {
		u.email = email
	}
	if fh, err := c.FormFile("profilePhoto"); err == nil {
		u.identity.PhotoURL = "/uploads/" + fh.Filename
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Profile updated successfully", "user": b.authorLocked(uid)})
}

func (b *Backend) profile(c echo.Context) error {
	id := c.Param("id")

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.users[id]; !ok {
		return fail(c, http.StatusNotFound, "User not found")
	}
	var blogs, liked []domain.Post
	blogs, liked = []domain.Post{}, []domain.Post{}
	for _, p := range b.allPostsLocked() {
		if p.PublishedBy == id {
			blogs = append(blogs, p)
		}
		if slices.Contains(p.LikedBy, id) {
			liked = append(liked, p)
		}
	}
	lists := b.listsOfLocked(id)
	saved := []domain.Post{}
	for _, l := range lists {
		for _, ref := range l.Blogs {
			if p, ok := b.posts[ref.ID]; ok {
				saved = append(saved, p.Clone())
			}
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"user":       b.authorLocked(id),
		"blogs":      blogs,
		"likedBlogs": liked,
		"savedBlogs": saved,
		"lists":      lists,
	})
}

func (b *Backend) allNotifications(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := append([]domain.Notification{}, b.notifications[userID(c)]...)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "notifications": out})
}

func (b *Backend) search(c echo.Context) error {
	term := strings.ToLower(strings.TrimSpace(c.QueryParam("query")))
	limit := queryInt(c, "limit", 10)
	authorPage := queryInt(c, "authorPage", 1)
	blogPage := queryInt(c, "blogPage", 1)
	listPage := queryInt(c, "listPage", 1)

	b.mu.Lock()
	defer b.mu.Unlock()

	var authors []domain.Author
	for _, id := range b.userOrder {
		if strings.Contains(strings.ToLower(b.users[id].identity.Name), term) {
			authors = append(authors, b.authorLocked(id))
		}
	}
	var blogs []domain.Post
	for _, p := range b.allPostsLocked() {
		if strings.Contains(strings.ToLower(p.Title), term) {
			blogs = append(blogs, p)
		}
	}
	var lists []domain.List
	for _, id := range b.listOrder {
		if l := b.lists[id]; strings.Contains(strings.ToLower(l.list.Title), term) {
			lists = append(lists, l.list.Clone())
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"authors": page(authors, authorPage, limit),
		"blogs":   page(blogs, blogPage, limit),
		"lists":   page(lists, listPage, limit),
	})
}

func page[T any](items []T, n, limit int) domain.Page[T] {
	out := domain.Page[T]{Items: []T{}, Total: len(items)}
	start := (n - 1) * limit
	if start < 0 || start >= len(items) {
		return out
	}
	end := min(start+limit, len(items))
	out.Items = append(out.Items, items[start:end]...)
	return out
}

func queryInt(c echo.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
