package dto

// PublishIndexDocumentMessage is the watermill payload that asks the
// indexing consumer to (re)embed every chunk of a document.
type PublishIndexDocumentMessage struct {
	DocId string `json:"doc_id"`
}
