package mailer

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSender is a testify mock for Sender.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, email *Email) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"layouts/base.html": &fstest.MapFile{
			Data: []byte(`<html><body>{{.Content}}</body></html>`),
		},
		"welcome.md": &fstest.MapFile{
			Data: []byte("---\nSubject: Welcome to {{.Newsletter}}\n---\nHi **{{.Name}}**!\n"),
		},
		"plain.md": &fstest.MapFile{
			Data: []byte("No frontmatter for {{.Name}}"),
		},
	}
}

func TestMailer_Send(t *testing.T) {
	t.Parallel()

	data := map[string]string{"Name": "Alice", "Newsletter": "Daily Brief"}

	t.Run("subject from frontmatter", func(t *testing.T) {
		t.Parallel()

		sender := &MockSender{}
		m := New(sender, NewRenderer(testFS()), Config{DefaultLayout: "base.html", FallbackSubject: "Hello"})

		sender.On("Send", mock.Anything, mock.MatchedBy(func(e *Email) bool {
			return e.To[0] == "alice@example.com" &&
				e.Subject == "Welcome to Daily Brief" &&
				assert.ObjectsAreEqual(Tags{"kind": "welcome"}, e.Tags)
		})).Return(nil).Once()

		err := m.Send(context.Background(), SendParams{
			To:       "alice@example.com",
			Template: "welcome.md",
			Data:     data,
			Tags:     Tags{"kind": "welcome"},
		})
		require.NoError(t, err)
		sender.AssertExpectations(t)
	})

	t.Run("fallback subject", func(t *testing.T) {
		t.Parallel()

		sender := &MockSender{}
		m := New(sender, NewRenderer(testFS()), Config{DefaultLayout: "base.html", FallbackSubject: "Hello {{.Name}}"})

		sender.On("Send", mock.Anything, mock.MatchedBy(func(e *Email) bool {
			return e.Subject == "Hello Alice"
		})).Return(nil).Once()

		require.NoError(t, m.Send(context.Background(), SendParams{To: "a@example.com", Template: "plain.md", Data: data}))
		sender.AssertExpectations(t)
	})

	t.Run("inline source", func(t *testing.T) {
		t.Parallel()

		sender := &MockSender{}
		m := New(sender, NewRenderer(testFS()), Config{DefaultLayout: "base.html"})

		var got *Email
		sender.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			got = args.Get(1).(*Email)
		}).Return(nil).Once()

		err := m.Send(context.Background(), SendParams{
			To:      "a@example.com",
			Subject: "Thanks, {{.Name}}",
			Source:  "Thanks for joining *{{.Newsletter}}*.",
			Data:    data,
		})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Thanks, Alice", got.Subject)
		assert.Contains(t, got.HTML, "<em>Daily Brief</em>")
		assert.Contains(t, got.Text, "*Daily Brief*")
	})

	t.Run("no recipient", func(t *testing.T) {
		t.Parallel()

		sender := &MockSender{}
		m := New(sender, NewRenderer(testFS()), Config{})
		require.ErrorIs(t, m.Send(context.Background(), SendParams{Template: "welcome.md"}), ErrNoRecipient)
		sender.AssertNotCalled(t, "Send")
	})

	t.Run("missing template", func(t *testing.T) {
		t.Parallel()

		sender := &MockSender{}
		m := New(sender, NewRenderer(testFS()), Config{DefaultLayout: "base.html"})
		err := m.Send(context.Background(), SendParams{To: "a@example.com", Template: "nope.md"})
		require.ErrorIs(t, err, ErrRenderFailed)
		require.ErrorIs(t, err, ErrTemplateNotFound)
	})

	t.Run("provider failure", func(t *testing.T) {
		t.Parallel()

		sender := &MockSender{}
		m := New(sender, NewRenderer(testFS()), Config{DefaultLayout: "base.html"})
		providerErr := errors.New("rate limited")
		sender.On("Send", mock.Anything, mock.Anything).Return(providerErr).Once()

		err := m.Send(context.Background(), SendParams{To: "a@example.com", Template: "welcome.md", Data: data})
		require.ErrorIs(t, err, ErrSendFailed)
		require.ErrorIs(t, err, providerErr)
	})
}

func TestMailer_SendRaw_Validates(t *testing.T) {
	t.Parallel()

	m := New(SenderFunc(func(context.Context, *Email) error { return nil }), nil, Config{})

	require.ErrorIs(t, m.SendRaw(context.Background(), &Email{Subject: "s", HTML: "h"}), ErrNoRecipient)
	require.ErrorIs(t, m.SendRaw(context.Background(), &Email{To: []string{"a@b.c"}, HTML: "h"}), ErrNoSubject)
	require.ErrorIs(t, m.SendRaw(context.Background(), &Email{To: []string{"a@b.c"}, Subject: "s"}), ErrNoContent)
	require.NoError(t, m.SendRaw(context.Background(), &Email{To: []string{"a@b.c"}, Subject: "s", HTML: "h"}))
}

func TestRecipient(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Alice <alice@example.com>", Recipient("Alice", "alice@example.com"))
	assert.Equal(t, "alice@example.com", Recipient("", "alice@example.com"))
}

func TestTags_With(t *testing.T) {
	t.Parallel()

	base := Tags{"kind": "edition"}
	got := base.With("edition_id", int64(42))

	assert.Equal(t, Tags{"kind": "edition", "edition_id": "42"}, got)
	assert.Equal(t, Tags{"kind": "edition"}, base)
}
