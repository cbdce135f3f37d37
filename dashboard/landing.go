package dashboard

// Feature is one tile of the landing page feature grid.
type Feature struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Landing is the static marketing content served on the root route.
type Landing struct {
	Product  string    `json:"product"`
	Headline string    `json:"headline"`
	Tagline  string    `json:"tagline"`
	Features []Feature `json:"features"`
	FAQ      []FAQ     `json:"faq"`
}

func LandingContent() Landing {
	return Landing{
		Product:  "SutradharX",
		Headline: "The Future of Secure Transactions is Here",
		Tagline:  "SutradharX is a decentralized escrow platform that uses smart contracts to facilitate secure transactions between two parties.",
		Features: []Feature{
			{Title: "Secure", Description: "Transactions are protected end to end and your data stays safe."},
			{Title: "Reliable", Description: "Escrows settle on the Aptos blockchain, which is reliable and transparent."},
			{Title: "Analytics", Description: "Detailed analytics help you make informed decisions."},
			{Title: "Developer API", Description: "Integrate escrow into your own applications through our API."},
			{Title: "User friendly", Description: "Designed to be easy to use for everyone."},
			{Title: "24/7 Support", Description: "Help is available around the clock for any question you have."},
		},
		FAQ: []FAQ{
			{
				Question: "What is SutradharX?",
				Answer:   "A decentralized escrow platform that uses smart contracts to secure transactions between two parties, with UPI integration for payments.",
			},
			{
				Question: "How does SutradharX work?",
				Answer:   "The payer creates a contract and deposits funds. The funds stay in escrow until the terms are met and are then released to the payee.",
			},
			{
				Question: "Is SutradharX secure?",
				Answer:   "Yes. It is built on the Aptos blockchain and every transaction is recorded on chain where anyone can verify it.",
			},
			{
				Question: "What is the fee for using SutradharX?",
				Answer:   "A small fee is charged per transaction to maintain the platform and fund future development.",
			},
		},
	}
}
