package qa

// Result is the outcome of Answer: either Found or NotFound.
type Result interface {
	Response() Response
	isResult()
}

// Response is the wire shape of a Result.
type Response struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Score    float32 `json:"score"`
	Found    bool    `json:"found"`
}

// Found is a confident match. Question is the stored question that matched,
// not the user's query.
type Found struct {
	Question string
	Answer   string
	Score    float32
}

func (Found) isResult() {}

func (f Found) Response() Response {
	return Response{Question: f.Question, Answer: f.Answer, Score: f.Score, Found: true}
}

// NotFound means no stored question was close enough. Message is the fallback
// text, or empty when the index held nothing to compare against.
type NotFound struct {
	Query   string
	Message string
	Score   float32
}

func (NotFound) isResult() {}

func (n NotFound) Response() Response {
	return Response{Question: n.Query, Answer: n.Message, Score: n.Score}
}
