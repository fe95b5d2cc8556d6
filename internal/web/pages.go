package web

import (
	g "maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	c "maragu.dev/gomponents/components"
	. "maragu.dev/gomponents/html"

	"github.com/keyport/keyport/internal/model"
)

const htmxSrc = "https://unpkg.com/htmx.org@2.0.4"

// LoginData is rendered into the login page.
type LoginData struct {
	AppName string
	Email   string
	Error   string
}

// HomeData is rendered into the home page.
type HomeData struct {
	AppName string
	User    *model.User
}

func page(title string, body ...g.Node) g.Node {
	return c.HTML5(c.HTML5Props{
		Title:    title,
		Language: "en",
		Head: []g.Node{
			Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
			Script(Src(htmxSrc), Defer()),
		},
		Body: []g.Node{
			Main(Class("container"), g.Group(body)),
		},
	})
}

// LoginPage is the email form that starts passkey sign-up and sign-in.
func LoginPage(data LoginData) g.Node {
	return page("Sign in - "+data.AppName,
		Section(
			Class("auth"),
			H1(g.Textf("Connect to %s", data.AppName)),
			P(Class("muted"), g.Text("Enter your email below to sign in or create a new account")),
			Form(
				ID("auth-form"),
				Method("post"),
				g.Attr("novalidate"),
				Input(
					ID("email"),
					Name("email"),
					Type("email"),
					Placeholder("satoshi@bitcoin.com"),
					AutoComplete("username webauthn"),
					Value(data.Email),
					Required(),
				),
				P(
					ID("auth-error"),
					Class("error"),
					Role("alert"),
					g.If(data.Error != "", g.Text(data.Error)),
				),
				Div(
					Class("actions"),
					Button(Type("submit"), Name("action"), Value("signup"), g.Text("Sign Up")),
					Button(Type("submit"), Name("action"), Value("signin"), g.Text("Login")),
				),
			),
		),
		Script(Src(AssetsPrefix+"auth.js"), Defer()),
	)
}

// HomePage shows the signed-in user and their wallet.
func HomePage(data HomeData) g.Node {
	user := data.User
	return page(data.AppName,
		Header(
			Class("topbar"),
			Span(g.Text(data.AppName)),
			Button(
				ID("sign-out"),
				hx.Post("/api/auth/signout"),
				hx.Swap("none"),
				g.Text("Sign out"),
			),
		),
		Section(
			Class("profile"),
			H1(g.Textf("Welcome, %s", user.Username)),
			Dl(
				Dt(g.Text("Email")), Dd(g.Text(user.Email)),
				Dt(g.Text("Wallet")), Dd(Code(ID("wallet"), g.Text(user.Wallet))),
				Dt(g.Text("Organization")), Dd(Code(g.Text(user.OrgID))),
			),
		),
		Section(
			Class("provider"),
			H2(g.Text("Wallet provider")),
			Div(
				Class("actions"),
				Button(Data("rpc-method", "eth_accounts"), g.Text("eth_accounts")),
				Button(Data("rpc-method", "eth_chainId"), g.Text("eth_chainId")),
				Button(Data("rpc-method", "eth_blockNumber"), g.Text("eth_blockNumber")),
			),
			Pre(ID("rpc-output")),
		),
		Script(Src(AssetsPrefix+"wallet.js"), Defer()),
	)
}
