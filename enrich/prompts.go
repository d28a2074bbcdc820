package enrich

const topicsPrompt = `You classify documents. List the main topics and themes of the document below (at most %d).
Use short labels of one to three words.

Respond with JSON only, in this shape:
{"topics": ["label", "label"]}

Title: %s
Keywords: %s

Document content:
%s`

const summaryPrompt = `Write a concise summary of the document below in 150 to 200 words.
Reply with the summary text only, without headings or preamble.

Title: %s

Document content:
%s`
