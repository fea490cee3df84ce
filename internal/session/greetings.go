package session

// Default greeting texts of the legal-advice service. The intro is the
// service disclaimer shown once at the top of every conversation; the
// welcome is the short greeting the server also streams on connect, which
// the greeting guard deduplicates.
const (
	DefaultIntro = "こんにちは、法律相談LawFlowです。刑事事件の法律相談に無料で回答します。" +
		"以下の注意事項をお読みいただいた上で、ご相談ください。\n＊注意事項＊\n" +
		"○本サービスによる回答がユーザー様のご希望に沿ったり有益であることやいかなる誤りもないことは保証できません。\n" +
		"○本サービスの利用に起因してユーザー様に生じたあらゆる損害について一切の責任を負いません。\n" +
		"○投稿した発言は削除できません\n" +
		"○正確に回答できない可能性がありますので、弁護士に相談するなどして、回答の正確性を確保するようにしてください。"

	DefaultWelcome = "こんにちは。ご相談やご質問があればお気軽にお知らせください。"
)
