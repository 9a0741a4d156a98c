package patents

import "encoding/json"

// PatentDocument is the flattened view of a published patent document
// returned to callers. The OPS wire format is deeply nested XML-as-JSON;
// only the fields the assistant renders are lifted out.
type PatentDocument struct {
	PublicationNumber string `json:"publication_number"`
	Title             string `json:"title"`
	Abstract          string `json:"abstract,omitempty"`
	PublicationDate   string `json:"publication_date,omitempty"`
}

// opsText models OPS text nodes, which arrive as {"$": "value"}
type opsText struct {
	Value string `json:"$"`
}

// flexList accepts either a single JSON object or an array of them. OPS
// collapses one-element collections into a bare object.
type flexList[T any] []T

func (l *flexList[T]) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var single T
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*l = []T{single}
	return nil
}

// searchResponse covers ops:biblio-search from published-data/search
type searchResponse struct {
	WorldPatentData struct {
		BiblioSearch struct {
			TotalResultCount string `json:"@total-result-count"`
			SearchResult     struct {
				PublicationReferences flexList[publicationReference] `json:"ops:publication-reference"`
			} `json:"ops:search-result"`
		} `json:"ops:biblio-search"`
	} `json:"ops:world-patent-data"`
}

type publicationReference struct {
	DocumentID documentID `json:"document-id"`
}

type documentID struct {
	Country   opsText `json:"country"`
	DocNumber opsText `json:"doc-number"`
	Kind      opsText `json:"kind"`
	Date      opsText `json:"date"`
}

// Number joins country, number and kind into the epodoc publication number
func (d documentID) Number() string {
	return d.Country.Value + d.DocNumber.Value + d.Kind.Value
}

// biblioResponse covers published-data/publication/epodoc/{n}/biblio
type biblioResponse struct {
	WorldPatentData struct {
		ExchangeDocuments struct {
			ExchangeDocument flexList[exchangeDocument] `json:"exchange-document"`
		} `json:"exchange-documents"`
	} `json:"ops:world-patent-data"`
}

type exchangeDocument struct {
	BibliographicData struct {
		PublicationReference struct {
			DocumentID flexList[documentID] `json:"document-id"`
		} `json:"publication-reference"`
		InventionTitle flexList[inventionTitle] `json:"invention-title"`
	} `json:"bibliographic-data"`
	Abstract flexList[abstract] `json:"abstract"`
}

type inventionTitle struct {
	Lang  string `json:"@lang"`
	Value string `json:"$"`
}

type abstract struct {
	Lang       string            `json:"@lang"`
	Paragraphs flexList[opsText] `json:"p"`
}
