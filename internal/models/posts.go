package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"blog/internal/db"
)

// RecentComments is how many comments a post page shows.
const RecentComments = 20

const postColumns = `p.id, p.user_id, COALESCE(u.name, ''), p.title, p.subtitle, p.date, p.body, p.img_url, p.category, p.created_at`

func scanPost(row interface{ Scan(...any) error }) (*Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.UserID, &p.Author, &p.Title, &p.Subtitle, &p.Date,
		&p.Body, &p.ImgURL, &p.Category, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func CreatePost(ctx context.Context, q db.Querier, p *Post) error {
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	row := q.QueryRowContext(ctx,
		`INSERT INTO blog_posts (title, subtitle, date, body, img_url, category, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		p.Title, p.Subtitle, p.Date, p.Body, p.ImgURL, p.Category, p.UserID, p.CreatedAt)
	if err := row.Scan(&p.ID); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateTitle
		}
		return fmt.Errorf("inserting post: %w", err)
	}
	return nil
}

// UpdatePost overwrites the editable fields of the post with p.ID.
func UpdatePost(ctx context.Context, q db.Querier, p *Post) error {
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	res, err := q.ExecContext(ctx,
		`UPDATE blog_posts SET title = ?, subtitle = ?, body = ?, img_url = ?, category = ? WHERE id = ?`,
		p.Title, p.Subtitle, p.Body, p.ImgURL, p.Category, p.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateTitle
		}
		return fmt.Errorf("updating post: %w", err)
	}
	return expectOne(res)
}

// DeletePost removes the post; its comments go with it through the foreign key.
func DeletePost(ctx context.Context, q db.Querier, id int) error {
	res, err := q.ExecContext(ctx, `DELETE FROM blog_posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	return expectOne(res)
}

func GetPost(ctx context.Context, q db.Querier, id int) (*Post, error) {
	return scanPost(q.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM blog_posts p LEFT JOIN users u ON u.id = p.user_id WHERE p.id = ?`, id))
}

// ListPosts returns every post, newest first.
func ListPosts(ctx context.Context, q db.Querier) ([]Post, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+postColumns+` FROM blog_posts p LEFT JOIN users u ON u.id = p.user_id
		ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()
	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

func CreateComment(ctx context.Context, q db.Querier, c *Comment) error {
	row := q.QueryRowContext(ctx,
		`INSERT INTO comments (body, name, user_id, blog_post_id, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		c.Body, c.Name, c.UserID, c.PostID, c.CreatedAt)
	if err := row.Scan(&c.ID); err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("inserting comment: %w", err)
	}
	return nil
}

func GetComment(ctx context.Context, q db.Querier, id int) (*Comment, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, blog_post_id, user_id, name, body, created_at FROM comments WHERE id = ?`, id)
	var c Comment
	if err := row.Scan(&c.ID, &c.PostID, &c.UserID, &c.Name, &c.Body, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListComments returns the newest limit comments of one post, oldest first.
func ListComments(ctx context.Context, q db.Querier, postID, limit int) ([]Comment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, blog_post_id, user_id, name, body, created_at FROM comments
		WHERE blog_post_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, postID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()
	var cs []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Name, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(cs)-1; i < j; i, j = i+1, j-1 {
		cs[i], cs[j] = cs[j], cs[i]
	}
	return cs, nil
}

// DeleteComment removes a comment and returns the id of the post it was on.
func DeleteComment(ctx context.Context, q db.Querier, id int) (int, error) {
	c, err := GetComment(ctx, q, id)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("deleting comment: %w", err)
	}
	if err := expectOne(res); err != nil {
		return 0, err
	}
	return c.PostID, nil
}
