// Package prompts holds the fixed prompt templates used by the document
// pipelines. Render helpers take already-formatted text; callers are
// responsible for joining chunk lists before rendering.
package prompts

import "fmt"

// NoAnswerFallback is the fixed reply used whenever retrieval or
// refinement cannot produce a grounded answer. Routers compare against
// this exact sentence, so it must not be reworded casually.
const NoAnswerFallback = "I'm sorry, I can't find the answer to your question even though I read all the documents. Please ask a question about the document's content."

// NotRelatedMarker is the sentence the refine prompt instructs the model
// to return verbatim when the query is off-document.
const NotRelatedMarker = "not related to the document content"

// DetermineWeb asks whether answering the query needs information beyond
// the document summary. The model must answer 'true' or 'false'.
func DetermineWeb(query, summary string) string {
	return fmt.Sprintf(`You are a helpful assistant that can determine if the answer of the query need extra information from the web.
If the answer need extra information from the web, return 'true'.
If the answer does not need extra information from the web, return 'false'.
Query: %s
Summary: %s`, query, summary)
}

// Grade performs binary relevance classification of one retrieved chunk.
func Grade(query, summary, chunk string) string {
	return fmt.Sprintf(`You are a grader assessing relevance of a retrieved document to a user question.
If the document contains keyword(s) or semantic meaning related to the user question, grade it as relevant.
It does not need to be a stringent test. The goal is to filter out erroneous retrievals.
Give a binary score 'yes' or 'no' score to indicate whether the document is relevant to the question.
YOU MUST RETURN ONLY 'yes' or 'no'.
Query: %s
Summary: %s
Retrieved: %s`, query, summary, chunk)
}

// Generate produces the final answer from the surviving graded chunks.
func Generate(query, retrieved string) string {
	return fmt.Sprintf(`You are a helpful assistant that can generate a answer of the query in English.
Use the retrieved information to generate the answer.
YOU MUST RETURN ONLY THE ANSWER, NOTHING ELSE.
Query: %s
Retrieved: %s`, query, retrieved)
}

// Verify checks the generated answer against four quality criteria and
// returns 'good' or 'bad'.
func Verify(query, summary, retrieved, answer string) string {
	return fmt.Sprintf(`You are a helpful assistant that can verify the quality of the generated answer.
Please evaluate the answer based on the following criteria:
1. Does the answer directly address the query?
2. Is the answer based on the retrieved information?
3. Is the answer logically consistent?
4. Is the answer complete and specific?

Query: %s
Summary: %s
Retrieved Information: %s
Generated Answer: %s

Return 'good' if the answer meets all criteria, otherwise return 'bad'. Do not return anything else.`, query, summary, retrieved, answer)
}

// Refine either rewrites the query for another retrieval round or
// declares the query unrelated to the document.
func Refine(summary, query, retrieved, answer string) string {
	return fmt.Sprintf(`You are a helpful assistant that can do two things:
1. If the query is not related to the document content, return ONLY this sentence: "%s"
2. If the query is related, refine the query to get more relevant and accurate information based on the document summary and retrieved information. Return ONLY the refined query, nothing else.

Document Summary: %s
Original Query: %s
Retrieved Information: %s
Generated Answer: %s`, NoAnswerFallback, summary, query, retrieved, answer)
}

// ChatAnswer answers a question from an ordered chat transcript.
func ChatAnswer(query, history string) string {
	return fmt.Sprintf(`You are a helpful assistant. Using the following chat history, answer the question.
### Question:
%s

### Chat history:
%s

### Answer:`, query, history)
}

// ChatVerify classifies a chat answer as 'true', 'false' or 'bad'.
func ChatVerify(query, history, answer string) string {
	return fmt.Sprintf(`You are a helpful assistant that verifies if an answer is relevant to the chat history.

Rules:
- If the answer is unrelated to the chat history, return 'bad'
- If the answer is partially incorrect or irrelevant, return 'false'
- If the answer is correct and clearly based on the chat history, return 'true'
- ONLY return one of: 'true', 'false', 'bad'

### Question:
%s

### Chat History:
%s

### Answer:
%s

### Verify:`, query, history, answer)
}

// ChatRefine rewrites a partially wrong chat answer.
func ChatRefine(query, history, answer string) string {
	return fmt.Sprintf(`You are a helpful assistant. Using the following chat history, refine the answer.
### Question:
%s

### Chat history:
%s

### Answer:
%s

### Refine:`, query, history, answer)
}

// Translate renders the final answer into the requested language.
func Translate(lang, text string) string {
	return fmt.Sprintf(`You are a helpful assistant that can translate the answer to User language.
ONLY RETURN THE TRANSLATED SEQUENCE, NOTHING ELSE.
User language: %s
Answer: %s`, lang, text)
}

// TutorialSection turns one topic segment into a tutorial section
// written directly in the reader's language.
func TutorialSection(lang, chunks string) string {
	return fmt.Sprintf(`You are a patient tutor writing a step-by-step tutorial section in Markdown, in %s.
Explain the following material clearly, in reading order, with short paragraphs and examples where helpful.
Return ONLY the Markdown section body.

Material:
%s`, lang, chunks)
}

// SummarizeMap is the per-chunk stage of map-reduce summarization.
func SummarizeMap(text string) string {
	return fmt.Sprintf(`You are a helpful assistant that summarizes the following text.

%s

Please summarize the text in a concise manner.`, text)
}

// SummarizeCombine merges the per-chunk summaries into one.
func SummarizeCombine(text string) string {
	return fmt.Sprintf(`You are a helpful assistant that combines the following summaries.

%s

Please combine the summaries in a concise manner.`, text)
}
