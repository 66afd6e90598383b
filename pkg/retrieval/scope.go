package retrieval

import "docqa-engine/internal/repository/specification"

func scopeSpecs(scope []string) []specification.Specification {
	if len(scope) == 0 {
		return nil
	}
	return []specification.Specification{
		specification.ByDocIDs{DocIDs: scope},
	}
}
