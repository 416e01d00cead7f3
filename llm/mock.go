package llm

import "context"

// MockClient is an offline stand-in for local debugging. It never calls a model:
// story calls get a short fixed story and judge calls get a passing verdict.
type MockClient struct{}

const mockStory = `Alice tucked her blanket under her chin while Bob the cat curled up at her feet.
"Do you hear that?" Bob whispered. Outside, the wind hummed a soft lullaby through the garden.
Together they counted the stars through the window, one for every happy thing that happened that day.
By the time they reached the seventh star, Bob was purring and Alice's eyes were heavy.
The moon smiled down on them both, and the little house grew warm and quiet. Goodnight, Alice. Goodnight, Bob.`

const mockVerdict = `{"pass": true, "scores": {"age_appropriateness": 5, "clarity": 5, "engagement": 4, "bedtime_tone": 5, "structure": 4, "request_fit": 4, "safety": 5}, "issues": [], "revision_instructions": []}`

func (MockClient) Complete(_ context.Context, req Request) (string, error) {
	if req.Purpose == PurposeJudge {
		return mockVerdict, nil
	}
	return mockStory, nil
}

func (MockClient) Model() string {
	return ProviderMock
}
