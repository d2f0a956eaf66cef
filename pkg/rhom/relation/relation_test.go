package relation_test

import (
	"context"
	"testing"

	"github.com/randalmurphal/rhom/pkg/rhom"
	"github.com/randalmurphal/rhom/pkg/rhom/relation"
	"github.com/randalmurphal/rhom/pkg/rhom/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	backend    *store.MemoryBackend
	users      *rhom.Descriptor
	books      *rhom.Descriptor
	publishers *rhom.Descriptor

	author   *relation.One
	employer *relation.One
	written  *relation.Many
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := store.NewMemoryBackend()
	f := &fixture{
		backend:    b,
		users:      rhom.New("User", rhom.WithProperties("name")),
		books:      rhom.New("Book", rhom.WithProperties("title")),
		publishers: rhom.New("Publisher", rhom.WithProperties("name")),
	}
	f.author = relation.ToOne(f.books, f.users, b, relation.WithName("author"))
	f.employer = relation.ToOne(f.users, f.publishers, b, relation.WithName("employer"))
	f.written = relation.ToMany(f.users, f.books, b)

	require.NoError(t, f.users.Use(store.New(b), f.employer, f.written))
	require.NoError(t, f.books.Use(store.New(b), f.author))
	require.NoError(t, f.publishers.Use(store.New(b)))
	return f
}

func create(t *testing.T, d *rhom.Descriptor, field, value string) *rhom.Instance {
	t.Helper()
	inst := d.NewInstance()
	require.NoError(t, inst.Set(field, value))
	_, err := inst.Save(context.Background()).Wait()
	require.NoError(t, err)
	return inst
}

func titles(t *testing.T, list []*rhom.Instance) []string {
	t.Helper()
	out := make([]string, 0, len(list))
	for _, inst := range list {
		v, _ := inst.Get("title")
		out = append(out, v.(string))
	}
	return out
}

func TestToOne(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ada := create(t, f.users, "name", "Ada")
	book := create(t, f.books, "title", "Notes")

	got, err := f.author.Get(ctx, book).Wait()
	require.NoError(t, err)
	assert.Nil(t, got, "nothing linked yet")

	ok, err := f.author.Set(ctx, book, ada).Wait()
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = f.author.Get(ctx, book).Wait()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ada.ID(), got.ID())

	stored, err := f.backend.GetString(ctx, f.books.Key(book.ID()+":author"))
	require.NoError(t, err)
	assert.Equal(t, ada.ID(), stored)

	_, err = f.author.Set(ctx, book, nil).Wait()
	require.NoError(t, err)
	id, err := f.author.TargetID(ctx, book)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestToOne_MissingTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := create(t, f.books, "title", "Notes")

	_, err := f.author.Set(ctx, book, "ghost").Wait()
	require.NoError(t, err)

	got, err := f.author.Get(ctx, book).Wait()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestToOne_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	book := create(t, f.books, "title", "Notes")

	_, err := f.author.Get(ctx, f.books.NewInstance()).Wait()
	assert.ErrorIs(t, err, rhom.ErrMissingIdentifier)

	_, err = f.author.Set(ctx, book, f.users.NewInstance()).Wait()
	assert.ErrorIs(t, err, relation.ErrNoTarget)

	_, err = f.author.Set(ctx, book, 42).Wait()
	assert.ErrorContains(t, err, "unsupported target int")

	var cbErr error
	f.author.Get(ctx, nil, func(_ *rhom.Instance, err error) { cbErr = err })
	assert.ErrorIs(t, cbErr, rhom.ErrMissingIdentifier, "callback runs synchronously on rejection")
}

func TestToOne_Accessors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ada := create(t, f.users, "name", "Ada")
	book := create(t, f.books, "title", "Notes")

	assert.Equal(t, "Relation:author", f.author.Name())
	assert.Equal(t, []string{"getAuthor", "setAuthor"}, f.books.Accessors())

	_, err := f.books.Call(ctx, "setAuthor", relation.Link{Owner: book, Target: ada.ID()}).Wait()
	require.NoError(t, err)

	v, err := f.books.Call(ctx, "getAuthor", book).Wait()
	require.NoError(t, err)
	got, ok := v.(*rhom.Instance)
	require.True(t, ok)
	assert.Equal(t, ada.ID(), got.ID())

	_, err = f.books.Call(ctx, "getAuthor", "not an instance").Wait()
	assert.ErrorContains(t, err, "unsupported argument string")
}

func TestToMany(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ada := create(t, f.users, "name", "Ada")
	notes := create(t, f.books, "title", "Notes")
	sketch := create(t, f.books, "title", "Sketch")

	assert.Equal(t, "Relation:Books", f.written.Name())
	assert.Subset(t, f.users.Accessors(), []string{"getBooks", "addBooks", "removeBooks"})

	empty, err := f.written.List(ctx, ada).Wait()
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = f.written.Add(ctx, ada, notes).Wait()
	require.NoError(t, err)
	_, err = f.written.Add(ctx, ada, sketch.ID()).Wait()
	require.NoError(t, err)

	list, err := f.written.List(ctx, ada).Wait()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Notes", "Sketch"}, titles(t, list))

	_, err = f.written.Remove(ctx, ada, notes).Wait()
	require.NoError(t, err)
	ids, err := f.written.TargetIDs(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, []string{sketch.ID()}, ids)

	_, err = sketch.Delete(ctx).Wait()
	require.NoError(t, err)
	list, err = f.written.List(ctx, ada).Wait()
	require.NoError(t, err)
	assert.Empty(t, list, "deleted targets are skipped")
}

func TestToMany_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ada := create(t, f.users, "name", "Ada")

	_, err := f.written.Add(ctx, ada, nil).Wait()
	assert.ErrorIs(t, err, relation.ErrNoTarget)
	_, err = f.written.Add(ctx, ada, "").Wait()
	assert.ErrorIs(t, err, relation.ErrNoTarget)
	_, err = f.written.List(ctx, f.users.NewInstance()).Wait()
	assert.ErrorIs(t, err, rhom.ErrMissingIdentifier)
}

func TestToMany_Accessors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ada := create(t, f.users, "name", "Ada")
	notes := create(t, f.books, "title", "Notes")

	_, err := f.users.Call(ctx, "addBooks", relation.Link{Owner: ada, Target: notes}).Wait()
	require.NoError(t, err)

	v, err := f.users.Call(ctx, "getBooks", ada).Wait()
	require.NoError(t, err)
	assert.Equal(t, []string{"Notes"}, titles(t, v.([]*rhom.Instance)))

	_, err = f.users.Call(ctx, "removeBooks", relation.Link{Owner: ada, Target: notes.ID()}).Wait()
	require.NoError(t, err)
	v, err = f.users.Call(ctx, "getBooks", ada).Wait()
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestCleanupOnDeleteAndPurge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ada := create(t, f.users, "name", "Ada")
	bob := create(t, f.users, "name", "Bob")
	notes := create(t, f.books, "title", "Notes")

	_, err := f.written.Add(ctx, ada, notes).Wait()
	require.NoError(t, err)
	_, err = f.written.Add(ctx, bob, notes).Wait()
	require.NoError(t, err)

	_, err = ada.Delete(ctx).Wait()
	require.NoError(t, err)
	keys, err := f.backend.Keys(ctx, f.users.Key(ada.ID()))
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = f.users.Purge(ctx).Wait()
	require.NoError(t, err)
	keys, err = f.backend.Keys(ctx, f.users.Prefix())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestVia(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ada := create(t, f.users, "name", "Ada")
	acme := create(t, f.publishers, "name", "Acme")
	notes := create(t, f.books, "title", "Notes")
	sketch := create(t, f.books, "title", "Sketch")

	_, err := f.author.Set(ctx, notes, ada).Wait()
	require.NoError(t, err)
	_, err = f.employer.Set(ctx, ada, acme).Wait()
	require.NoError(t, err)
	for _, b := range []*rhom.Instance{notes, sketch} {
		_, err = f.written.Add(ctx, ada, b).Wait()
		require.NoError(t, err)
	}

	publisher, err := relation.Via(f.books, []relation.Step{f.author, f.employer}, relation.WithName("publisher"))
	require.NoError(t, err)
	siblings, err := relation.Via(f.books, []relation.Step{f.author, f.written}, relation.WithName("siblings"))
	require.NoError(t, err)
	require.NoError(t, f.books.Use(publisher, siblings))
	assert.False(t, publisher.Many())
	assert.True(t, siblings.Many())

	got, err := publisher.Get(ctx, notes).Wait()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, acme.ID(), got.ID())

	list, err := siblings.List(ctx, notes).Wait()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Notes", "Sketch"}, titles(t, list))

	v, err := f.books.Call(ctx, "getPublisher", notes).Wait()
	require.NoError(t, err)
	assert.Equal(t, acme.ID(), v.(*rhom.Instance).ID())
	v, err = f.books.Call(ctx, "getSiblings", notes).Wait()
	require.NoError(t, err)
	assert.Len(t, v, 2)

	// sketch has no author, so the first hop is missing.
	got, err = publisher.Get(ctx, sketch).Wait()
	require.NoError(t, err)
	assert.Nil(t, got)
	list, err = siblings.List(ctx, sketch).Wait()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNilContextUsesBackground(t *testing.T) {
	f := newFixture(t)
	ada := create(t, f.users, "name", "Ada")
	acme := create(t, f.publishers, "name", "Acme")
	notes := create(t, f.books, "title", "Notes")

	var ctx context.Context
	_, err := f.author.Set(ctx, notes, ada).Wait()
	require.NoError(t, err)
	_, err = f.employer.Set(ctx, ada, acme).Wait()
	require.NoError(t, err)
	_, err = f.written.Add(ctx, ada, notes).Wait()
	require.NoError(t, err)

	got, err := f.author.Get(ctx, notes).Wait()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ada.ID(), got.ID())

	id, err := f.author.TargetID(ctx, notes)
	require.NoError(t, err)
	assert.Equal(t, ada.ID(), id)

	list, err := f.written.List(ctx, ada).Wait()
	require.NoError(t, err)
	assert.Equal(t, []string{"Notes"}, titles(t, list))
	ids, err := f.written.TargetIDs(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, []string{notes.ID()}, ids)

	publisher, err := relation.Via(f.books, []relation.Step{f.author, f.employer}, relation.WithName("publisher"))
	require.NoError(t, err)
	list, err = publisher.List(ctx, notes).Wait()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, acme.ID(), list[0].ID())

	_, err = f.written.Remove(ctx, ada, notes).Wait()
	require.NoError(t, err)
	_, err = f.author.Set(ctx, notes, nil).Wait()
	require.NoError(t, err)
}

func TestVia_Invalid(t *testing.T) {
	f := newFixture(t)

	_, err := relation.Via(f.books, []relation.Step{f.employer})
	assert.ErrorContains(t, err, "starts at User, not Book")

	_, err = relation.Via(f.users, []relation.Step{f.written, f.author})
	assert.ErrorContains(t, err, "must be to-one")

	_, err = relation.Via(f.books, nil)
	assert.ErrorContains(t, err, "empty path")
}

func TestInstallErrors(t *testing.T) {
	f := newFixture(t)

	err := f.publishers.Use(relation.ToOne(f.books, f.users, f.backend, relation.WithName("editor")))
	assert.ErrorContains(t, err, "owned by Book, not Publisher")

	err = f.books.Use(relation.ToOne(f.books, f.users, nil, relation.WithName("editor")))
	assert.ErrorContains(t, err, "nil backend")

	err = f.books.Use(relation.ToOne(f.books, f.users, f.backend, relation.WithName("author")))
	assert.ErrorIs(t, err, rhom.ErrDuplicatePlugin)
}
